package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"no args", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"set-password", []string{"set-password"}, CommandSetPassword},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"unknown falls back to serve", []string{"purge-users"}, CommandServe},
		{"case sensitive", []string{"Worker"}, CommandServe},
		{"extra args ignored", []string{"worker", "--once"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

// TestCommand_RequiresStore はPostgresなしで起動できるのがserveとhealthcheckだけであることを検証する。
func TestCommand_RequiresStore(t *testing.T) {
	tests := []struct {
		cmd  Command
		want bool
	}{
		{CommandServe, false},
		{CommandHealthcheck, false},
		{CommandWorker, true},
		{CommandMigrate, true},
		{CommandSetPassword, true},
	}

	for _, tt := range tests {
		if got := tt.cmd.RequiresStore(); got != tt.want {
			t.Errorf("%s.RequiresStore() = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}
