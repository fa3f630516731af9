package trader

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type SizeKind int

const (
	// SizeNotional is an absolute amount in quote currency ("$100" or "100").
	SizeNotional SizeKind = iota
	// SizePercent is a share of account value ("10%").
	SizePercent
)

type SizeSpec struct {
	Kind  SizeKind
	Value float64
}

func (s SizeSpec) String() string {
	v := strconv.FormatFloat(s.Value, 'f', -1, 64)
	if s.Kind == SizePercent {
		return v + "%"
	}
	return "$" + v
}

type TriggerKind int

const (
	TriggerFixed TriggerKind = iota
	TriggerPercent
	TriggerAbsolute
)

// TriggerSpec is a TP/SL trigger: a fixed price ("2100"), a percentage of the
// entry ("10%") or an absolute offset from it ("+100").
type TriggerSpec struct {
	Kind  TriggerKind
	Value float64
}

func parsePositive(field, s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, inputErr(field, s, "not a number")
	}
	if !d.IsPositive() {
		return 0, inputErr(field, s, "must be positive")
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseSize reads "$100", "100" or "10%".
func ParseSize(s string) (SizeSpec, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return SizeSpec{}, inputErr("size", s, "empty")
	}
	if strings.HasSuffix(raw, "%") {
		v, err := parsePositive("size", strings.TrimSuffix(raw, "%"))
		if err != nil {
			return SizeSpec{}, err
		}
		if v > 100 {
			return SizeSpec{}, inputErr("size", s, "percentage above 100")
		}
		return SizeSpec{Kind: SizePercent, Value: v}, nil
	}
	v, err := parsePositive("size", strings.TrimPrefix(raw, "$"))
	if err != nil {
		return SizeSpec{}, err
	}
	return SizeSpec{Kind: SizeNotional, Value: v}, nil
}

// ParsePrice reads "@1900" or "1900". Empty or zero means market.
func ParsePrice(s string) (float64, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "@")
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, inputErr("price", s, "not a number")
	}
	if d.IsNegative() {
		return 0, inputErr("price", s, "must not be negative")
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseTrigger returns nil for an empty trigger.
func ParseTrigger(s string) (*TriggerSpec, error) {
	raw := strings.TrimSpace(s)
	switch {
	case raw == "":
		return nil, nil
	case strings.HasSuffix(raw, "%"):
		v, err := parsePositive("trigger", strings.TrimSuffix(raw, "%"))
		if err != nil {
			return nil, err
		}
		return &TriggerSpec{Kind: TriggerPercent, Value: v}, nil
	case strings.HasPrefix(raw, "+"), strings.HasPrefix(raw, "-"):
		v, err := parsePositive("trigger", raw[1:])
		if err != nil {
			return nil, err
		}
		return &TriggerSpec{Kind: TriggerAbsolute, Value: v}, nil
	}
	v, err := parsePositive("trigger", strings.TrimPrefix(raw, "@"))
	if err != nil {
		return nil, err
	}
	return &TriggerSpec{Kind: TriggerFixed, Value: v}, nil
}

// ParsePercent reads "50" or "50%" as a share in (0, 100].
func ParsePercent(s string) (float64, error) {
	v, err := parsePositive("percentage", strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, err
	}
	if v > 100 {
		return 0, inputErr("percentage", s, "above 100")
	}
	return v, nil
}

// ParseSchedule reads a TWAP schedule "<minutes>,<orders>".
func ParseSchedule(s string) (minutes float64, n int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, inputErr("interval", s, "want <minutes>,<orders>")
	}
	mins, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil || mins.IsNegative() {
		return 0, 0, inputErr("interval", s, "minutes must be a non-negative number")
	}
	n, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || n < 1 {
		return 0, 0, inputErr("interval", s, "order count must be a positive integer")
	}
	minutes, _ = mins.Float64()
	return minutes, n, nil
}

// ParseLadder reads a scale ladder "<total>/<levels>".
func ParseLadder(s string) (total float64, n int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, 0, inputErr("ladder", s, "want <total>/<levels>")
	}
	total, err = parsePositive("ladder", strings.TrimPrefix(strings.TrimSpace(parts[0]), "$"))
	if err != nil {
		return 0, 0, err
	}
	n, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || n < 2 {
		return 0, 0, inputErr("ladder", s, "levels must be an integer of at least 2")
	}
	return total, n, nil
}

// ParsePair reads "BASE/QUOTE".
func ParsePair(s string) (base, quote string, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", inputErr("pair", s, "want BASE/QUOTE")
	}
	base, quote = strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
	if base == quote {
		return "", "", inputErr("pair", s, "legs must differ")
	}
	return base, quote, nil
}
