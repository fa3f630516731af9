package trader

import (
	"errors"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    SizeSpec
		wantErr bool
	}{
		{"$100", SizeSpec{SizeNotional, 100}, false},
		{"100", SizeSpec{SizeNotional, 100}, false},
		{" 12.5 ", SizeSpec{SizeNotional, 12.5}, false},
		{"10%", SizeSpec{SizePercent, 10}, false},
		{"0.5%", SizeSpec{SizePercent, 0.5}, false},
		{"", SizeSpec{}, true},
		{"$", SizeSpec{}, true},
		{"0", SizeSpec{}, true},
		{"-5", SizeSpec{}, true},
		{"150%", SizeSpec{}, true},
		{"ten", SizeSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				var inputErr *InputError
				if !errors.As(err, &inputErr) {
					t.Errorf("ParseSize(%q) error = %v, want *InputError", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSize(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		in      string
		want    *TriggerSpec
		wantErr bool
	}{
		{"", nil, false},
		{"10%", &TriggerSpec{TriggerPercent, 10}, false},
		{"+100", &TriggerSpec{TriggerAbsolute, 100}, false},
		{"-100", &TriggerSpec{TriggerAbsolute, 100}, false},
		{"2100", &TriggerSpec{TriggerFixed, 2100}, false},
		{"@2100", &TriggerSpec{TriggerFixed, 2100}, false},
		{"+", nil, true},
		{"0%", nil, true},
		{"abc", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTrigger(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTrigger(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTrigger(%q) error: %v", tt.in, err)
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("ParseTrigger(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 0, false},
		{"@1900", 1900, false},
		{"1900.5", 1900.5, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"@", 0, false},
		{"x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrice(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSchedule(t *testing.T) {
	mins, n, err := ParseSchedule("1,5")
	if err != nil || mins != 1 || n != 5 {
		t.Errorf("ParseSchedule(1,5) = %v, %d, %v", mins, n, err)
	}
	mins, n, err = ParseSchedule(" 0.5 , 3 ")
	if err != nil || mins != 0.5 || n != 3 {
		t.Errorf("ParseSchedule(0.5,3) = %v, %d, %v", mins, n, err)
	}
	for _, bad := range []string{"5", "1,0", "a,5", "1,b", "-1,5", "1,2,3"} {
		if _, _, err := ParseSchedule(bad); err == nil {
			t.Errorf("ParseSchedule(%q) expected error", bad)
		}
	}
}

func TestParseLadder(t *testing.T) {
	total, n, err := ParseLadder("10/5")
	if err != nil || total != 10 || n != 5 {
		t.Errorf("ParseLadder(10/5) = %v, %d, %v", total, n, err)
	}
	for _, bad := range []string{"10", "10/1", "0/5", "x/5", "10/y"} {
		if _, _, err := ParseLadder(bad); err == nil {
			t.Errorf("ParseLadder(%q) expected error", bad)
		}
	}
}

func TestParsePair(t *testing.T) {
	base, quote, err := ParsePair("eth/BTC")
	if err != nil || base != "ETH" || quote != "BTC" {
		t.Errorf("ParsePair(eth/BTC) = %s, %s, %v", base, quote, err)
	}
	for _, bad := range []string{"ETH", "ETH/", "/BTC", "ETH/BTC/SOL", "ETH/ETH"} {
		if _, _, err := ParsePair(bad); err == nil {
			t.Errorf("ParsePair(%q) expected error", bad)
		}
	}
}

func TestParsePercent(t *testing.T) {
	for in, want := range map[string]float64{"50": 50, "50%": 50, "100": 100, "0.1": 0.1} {
		got, err := ParsePercent(in)
		if err != nil || got != want {
			t.Errorf("ParsePercent(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"0", "101", "", "half"} {
		if _, err := ParsePercent(bad); err == nil {
			t.Errorf("ParsePercent(%q) expected error", bad)
		}
	}
}
