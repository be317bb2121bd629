package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeRoomName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		maxLen  int
		want    string
		wantErr bool
	}{
		{name: "plain", in: "r1", maxLen: 64, want: "r1"},
		{name: "trimmed", in: "  lobby \t", maxLen: 64, want: "lobby"},
		{name: "unicode", in: "комната", maxLen: 7, want: "комната"},
		{name: "empty", in: "", maxLen: 64, wantErr: true},
		{name: "blank", in: "   ", maxLen: 64, wantErr: true},
		{name: "too long", in: strings.Repeat("a", 65), maxLen: 64, wantErr: true},
		{name: "no limit", in: strings.Repeat("a", 500), maxLen: 0, want: strings.Repeat("a", 500)},
		{name: "control char", in: "a\x00b", maxLen: 64, wantErr: true},
		{name: "invalid utf8", in: "a\xffb", maxLen: 64, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRoomName(tt.in, tt.maxLen)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRoomName) {
					t.Fatalf("err=%v, want ErrInvalidRoomName", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
