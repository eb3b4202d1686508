package domain

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"120.50", 12050, false},
		{"0.01", 1, false},
		{"1000", 100000, false},
		{"200.00", 20000, false},
		{"0.1", 10, false},
		{"12.345", 0, true}, // sub-cent precision
		{"0", 0, true},
		{"0.00", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"1e3", 100000, false}, // decimal accepts exponent notation
	}

	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseAmount(%q): want ErrInvalidAmount, got %v", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseAmount(%q): want %d, got %d", c.in, c.want, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{12050, "120.50"},
		{1, "0.01"},
		{0, "0.00"},
		{100000, "1000.00"},
	}
	for _, c := range cases {
		if got := FormatAmount(c.in); got != c.want {
			t.Errorf("FormatAmount(%d): want %q, got %q", c.in, c.want, got)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoney(1050, USD)
	b := NewMoney(450, USD)

	sum, err := a.Add(b)
	if err != nil || sum.Amount != 1500 {
		t.Errorf("Add: want 1500, got %d (err %v)", sum.Amount, err)
	}

	diff, err := a.Subtract(b)
	if err != nil || diff.Amount != 600 {
		t.Errorf("Subtract: want 600, got %d (err %v)", diff.Amount, err)
	}

	if _, err := b.Subtract(a); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Subtract overdraw: want ErrInsufficientFunds, got %v", err)
	}

	if _, err := a.Add(NewMoney(1, EUR)); err == nil {
		t.Error("Add across currencies should fail")
	}
}
