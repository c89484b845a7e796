package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は表示状態をHTTP APIとして公開するサーバーモード。
	CommandServe Command = "serve"
	// CommandList は1回だけ読み込み、表示範囲をJSONで標準出力に書き出すモード。
	CommandList Command = "list"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を返す。
// 引数が空、またはフラグから始まる場合はCommandServeを返す。
// 未知のサブコマンドもCommandServeとして扱う。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch args[0] {
	case "serve":
		return CommandServe, args[1:]
	case "list":
		return CommandList, args[1:]
	case "healthcheck":
		return CommandHealthcheck, args[1:]
	default:
		return CommandServe, args
	}
}
