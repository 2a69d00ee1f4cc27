package app

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want Command
	}{
		{"空の引数", []string{}, CommandHelp},
		{"cats", []string{"cats"}, CommandCats},
		{"cat", []string{"cat", "cat-1"}, CommandCat},
		{"report", []string{"report"}, CommandReport},
		{"like", []string{"like", "cat-1"}, CommandLike},
		{"nearby", []string{"nearby"}, CommandNearby},
		{"search", []string{"search", "나비"}, CommandSearch},
		{"upload", []string{"upload"}, CommandUpload},
		{"login", []string{"login"}, CommandLogin},
		{"register", []string{"register"}, CommandRegister},
		{"logout", []string{"logout"}, CommandLogout},
		{"whoami", []string{"whoami"}, CommandWhoami},
		{"community", []string{"community"}, CommandCommunity},
		{"watch", []string{"watch"}, CommandWatch},
		{"help", []string{"help"}, CommandHelp},
		{"不明なコマンド", []string{"bogus"}, CommandHelp},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseCommand(tc.args); got != tc.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tc.args, got, tc.want)
			}
		})
	}
}
