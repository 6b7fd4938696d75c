package reporting

import (
	"strings"
	"testing"
	"time"

	"dlmm-profit-lab/internal/domain"
)

func csvLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestRenderTransactionsCSV(t *testing.T) {
	openedAt := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)
	price := 2.5
	usd := 25.0

	p := storedPosition("pos-1", openedAt, 2.5)
	p.Transactions[0].Add = true
	p.Transactions[0].Price = &price
	p.Transactions[0].USDDepositY = &usd

	out := RenderTransactionsCSV([]*domain.Position{p})
	lines := csvLines(out)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}

	header := strings.Split(lines[0], ",")
	row := strings.Split(lines[1], ",")
	if len(header) != len(row) {
		t.Fatalf("row has %d fields, header has %d", len(row), len(header))
	}

	field := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("header missing column %q", name)
		return ""
	}

	if got := field("position"); got != "pos-1" {
		t.Errorf("position = %q", got)
	}
	if got := field("timestamp"); got != "2024-02-10T08:30:00Z" {
		t.Errorf("timestamp = %q", got)
	}
	if got := field("add"); got != "true" {
		t.Errorf("add = %q", got)
	}
	if got := field("price"); got != "2.5" {
		t.Errorf("price = %q", got)
	}
	if got := field("deposit_y"); got != "10" {
		t.Errorf("deposit_y = %q", got)
	}
	if got := field("usd_deposit_y"); got != "25" {
		t.Errorf("usd_deposit_y = %q", got)
	}
	// Unset optional columns render empty.
	if got := field("usd_deposit_x"); got != "" {
		t.Errorf("usd_deposit_x = %q, want empty", got)
	}
}

func TestRenderPositionsCSV(t *testing.T) {
	openedAt := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)

	withUSD := storedPosition("pos-1", openedAt, 2.5)
	withUSD.USD = &domain.USDTotals{Deposits: 20, Withdraws: 22.5, ProfitLoss: 2.5}
	withoutUSD := storedPosition("pos-2", openedAt, -1)
	withoutUSD.HasAPIError = true

	out := RenderPositionsCSV([]*domain.Position{withUSD, withoutUSD})
	lines := csvLines(out)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}

	fieldCount := len(strings.Split(lines[0], ","))
	for i, line := range lines[1:] {
		if got := len(strings.Split(line, ",")); got != fieldCount {
			t.Errorf("row %d has %d fields, want %d", i+1, got, fieldCount)
		}
	}

	if !strings.Contains(lines[1], "2.5,20,22.5") {
		t.Errorf("usd columns missing from row: %s", lines[1])
	}
	// USD-less rows keep the column count with empty cells.
	if !strings.HasSuffix(lines[2], ",,,,,,") {
		t.Errorf("expected empty usd cells: %s", lines[2])
	}
}
