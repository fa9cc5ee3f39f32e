package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, in := range []string{"trace", "DEBUG", "info", "warning", "error", "crit"} {
		if _, err := ParseLevel(in); err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestModuleFiltering(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var buf bytes.Buffer
	if err := InitLoggerTo(&buf, "trace", false); err != nil {
		t.Fatalf("InitLoggerTo: %v", err)
	}

	DisableModule(WalletMonitoring)
	Debug(WalletMonitoring, "hidden debug line")
	if strings.Contains(buf.String(), "hidden debug line") {
		t.Fatal("debug line logged for disabled module")
	}

	EnableModules(" wallet_mod ,chain_mod")
	defer DisableModule(WalletMonitoring)
	defer DisableModule(ChainMonitoring)
	Debug(WalletMonitoring, "visible debug line", "height", 7)
	if !strings.Contains(buf.String(), "visible debug line") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}

	Info(CoinsMonitoring, "info always passes")
	if !strings.Contains(buf.String(), "info always passes") {
		t.Fatal("info line was filtered")
	}
}
