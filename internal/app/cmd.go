package app

// Command はCLIのサブコマンドを表す。
type Command string

const (
	// CommandCats は猫一覧の表示を示す。
	CommandCats Command = "cats"
	// CommandCat は猫の詳細表示を示す。
	CommandCat Command = "cat"
	// CommandReport は新しい猫の報告を示す。
	CommandReport Command = "report"
	// CommandLike はいいねのトグルを示す。
	CommandLike Command = "like"
	// CommandNearby は周辺検索を示す。
	CommandNearby Command = "nearby"
	// CommandSearch はキーワード検索を示す。
	CommandSearch Command = "search"
	// CommandUpload は猫の写真アップロードを示す。
	CommandUpload Command = "upload"
	// CommandLogin はログインを示す。
	CommandLogin Command = "login"
	// CommandRegister はアカウント登録を示す。
	CommandRegister Command = "register"
	// CommandLogout はログアウトを示す。
	CommandLogout Command = "logout"
	// CommandWhoami はログイン中ユーザーの表示を示す。
	CommandWhoami Command = "whoami"
	// CommandCommunity はコミュニティ投稿の表示・作成を示す。
	CommandCommunity Command = "community"
	// CommandWatch は周辺監視モードでの起動を示す。
	CommandWatch Command = "watch"
	// CommandHelp は使い方の表示を示す。
	CommandHelp Command = "help"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandHelp
	}

	switch args[0] {
	case "cats":
		return CommandCats
	case "cat":
		return CommandCat
	case "report":
		return CommandReport
	case "like":
		return CommandLike
	case "nearby":
		return CommandNearby
	case "search":
		return CommandSearch
	case "upload":
		return CommandUpload
	case "login":
		return CommandLogin
	case "register":
		return CommandRegister
	case "logout":
		return CommandLogout
	case "whoami":
		return CommandWhoami
	case "community":
		return CommandCommunity
	case "watch":
		return CommandWatch
	default:
		return CommandHelp
	}
}
