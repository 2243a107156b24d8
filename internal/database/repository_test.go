package database

import (
	"strings"
	"testing"
)

func TestListReportsQueryWithSymbol(t *testing.T) {
	query, args := listReportsQuery("BTCUSDT", 50, 10)

	if !strings.Contains(query, "WHERE symbol = $3") {
		t.Fatalf("expected symbol filter, got:\n%s", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d: %v", len(args), args)
	}
	if args[0] != 50 || args[1] != 10 || args[2] != "BTCUSDT" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestListReportsQueryWithoutSymbol(t *testing.T) {
	query, args := listReportsQuery("", 50, 0)

	if strings.Contains(query, "WHERE") {
		t.Fatalf("empty symbol must not filter, got:\n%s", query)
	}
	if !strings.Contains(query, "ORDER BY generated_at DESC") {
		t.Fatalf("query must stay ordered, got:\n%s", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d: %v", len(args), args)
	}
}
