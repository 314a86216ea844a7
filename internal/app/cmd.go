package app

// Command はstoreadminのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandSetPassword Command = "set-password"
	// CommandHealthcheck はdistrolessイメージのHEALTHCHECKから呼ばれる。
	// 設定の読み込みを行わずに自プロセスの/healthを叩く。
	CommandHealthcheck Command = "healthcheck"
)

// commandSpec はサブコマンドごとの起動条件。
type commandSpec struct {
	// requiresStore がtrueのコマンドはDATABASE_URLがないと起動しない。
	requiresStore bool
}

var commands = map[Command]commandSpec{
	CommandServe:       {},
	CommandWorker:      {requiresStore: true},
	CommandMigrate:     {requiresStore: true},
	CommandSetPassword: {requiresStore: true},
	CommandHealthcheck: {},
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 未指定や未知の値はserveとして扱い、2番目以降の引数は見ない。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	cmd := Command(args[0])
	if _, ok := commands[cmd]; !ok {
		return CommandServe
	}
	return cmd
}

// RequiresStore はコマンドの実行にPostgresが必須かどうかを返す。
func (c Command) RequiresStore() bool {
	return commands[c].requiresStore
}
