package ledger

import (
	"errors"
	"testing"

	"github.com/splitledger/splitledger/internal/money"
)

func sumSplits(t *testing.T, splits map[string]money.Money) int64 {
	t.Helper()
	var sum int64
	for _, s := range splits {
		sum += s.Amount
	}
	return sum
}

func TestComputeSplits(t *testing.T) {
	tests := []struct {
		name         string
		total        money.Money
		method       SplitMethod
		participants []string
		want         map[string]int64
		wantErr      error
	}{
		{
			name:         "equal three-way with remainder",
			total:        money.New(100, "USD"),
			method:       EqualSplit(),
			participants: []string{"charlie", "alice", "bob"},
			// Remainder goes one unit at a time in ascending id order.
			want: map[string]int64{"alice": 34, "bob": 33, "charlie": 33},
		},
		{
			name:         "equal exact division",
			total:        money.New(9000, "USD"),
			method:       EqualSplit(),
			participants: []string{"alice", "bob", "charlie"},
			want:         map[string]int64{"alice": 3000, "bob": 3000, "charlie": 3000},
		},
		{
			name:         "equal two-way odd cent",
			total:        money.New(101, "USD"),
			method:       EqualSplit(),
			participants: []string{"bob", "alice"},
			want:         map[string]int64{"alice": 51, "bob": 50},
		},
		{
			name:   "percentage with residual to last",
			total:  money.New(1000, "USD"),
			method: PercentageSplit(map[string]int64{"alice": 3333, "bob": 3333, "charlie": 3334}),
			participants: []string{"alice", "bob", "charlie"},
			// alice 333, bob 333, charlie absorbs 334.
			want: map[string]int64{"alice": 333, "bob": 333, "charlie": 334},
		},
		{
			name:         "duplicate participants rejected",
			total:        money.New(100, "USD"),
			method:       EqualSplit(),
			participants: []string{"alice", "alice", "bob"},
			wantErr:      ErrInvalidSplit,
		},
		{
			name:         "percentage must sum to 100",
			total:        money.New(1000, "USD"),
			method:       PercentageSplit(map[string]int64{"alice": 5000, "bob": 4000}),
			participants: []string{"alice", "bob"},
			wantErr:      ErrInvalidSplit,
		},
		{
			name:         "shares proportional",
			total:        money.New(700, "USD"),
			method:       SharesSplit(map[string]int64{"alice": 2, "bob": 1, "charlie": 4}),
			participants: []string{"alice", "bob", "charlie"},
			// alice 700*2/7=200, bob 700*1/7=100, charlie absorbs 400.
			want: map[string]int64{"alice": 200, "bob": 100, "charlie": 400},
		},
		{
			name:         "shares uneven remainder reconciles",
			total:        money.New(100, "USD"),
			method:       SharesSplit(map[string]int64{"alice": 1, "bob": 1, "charlie": 1}),
			participants: []string{"alice", "bob", "charlie"},
			// alice round(33.3)=33, bob 33, charlie absorbs 34.
			want: map[string]int64{"alice": 33, "bob": 33, "charlie": 34},
		},
		{
			name:         "shares all zero weights",
			total:        money.New(100, "USD"),
			method:       SharesSplit(map[string]int64{"alice": 0, "bob": 0}),
			participants: []string{"alice", "bob"},
			wantErr:      ErrInvalidSplit,
		},
		{
			name:  "exact valid",
			total: money.New(500, "USD"),
			method: ExactSplit(map[string]money.Money{
				"alice": money.New(150, "USD"),
				"bob":   money.New(350, "USD"),
			}),
			participants: []string{"alice", "bob"},
			want:         map[string]int64{"alice": 150, "bob": 350},
		},
		{
			name:  "exact sum mismatch",
			total: money.New(500, "USD"),
			method: ExactSplit(map[string]money.Money{
				"alice": money.New(150, "USD"),
				"bob":   money.New(349, "USD"),
			}),
			participants: []string{"alice", "bob"},
			wantErr:      ErrSplitMismatch,
		},
		{
			name:  "exact currency mismatch",
			total: money.New(500, "USD"),
			method: ExactSplit(map[string]money.Money{
				"alice": money.New(150, "EUR"),
				"bob":   money.New(350, "USD"),
			}),
			participants: []string{"alice", "bob"},
			wantErr:      money.ErrCurrencyMismatch,
		},
		{
			name:  "exact negative share",
			total: money.New(100, "USD"),
			method: ExactSplit(map[string]money.Money{
				"alice": money.New(-50, "USD"),
				"bob":   money.New(150, "USD"),
			}),
			participants: []string{"alice", "bob"},
			wantErr:      ErrInvalidSplit,
		},
		{
			name:         "empty participants",
			total:        money.New(100, "USD"),
			method:       EqualSplit(),
			participants: nil,
			wantErr:      ErrEmptyParticipants,
		},
		{
			name:         "missing percentage entry",
			total:        money.New(100, "USD"),
			method:       PercentageSplit(map[string]int64{"alice": 10000}),
			participants: []string{"alice", "bob"},
			wantErr:      ErrInvalidSplit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := ComputeSplits(tt.total, tt.method, tt.participants)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeSplits failed: %v", err)
			}

			if got := sumSplits(t, splits); got != tt.total.Amount {
				t.Errorf("splits sum to %d, want %d", got, tt.total.Amount)
			}
			for p, want := range tt.want {
				if got := splits[p].Amount; got != want {
					t.Errorf("%s share = %d, want %d", p, got, want)
				}
			}
		})
	}
}

// Splits must reconcile exactly for every remainder class, not just the
// hand-picked cases above.
func TestEqualSplitAlwaysReconciles(t *testing.T) {
	participants := []string{"a", "b", "c", "d", "e", "f", "g"}
	for total := int64(0); total < 500; total++ {
		splits, err := ComputeSplits(money.New(total, "USD"), EqualSplit(), participants)
		if err != nil {
			t.Fatalf("total %d: %v", total, err)
		}
		if got := sumSplits(t, splits); got != total {
			t.Fatalf("total %d: splits sum to %d", total, got)
		}
	}
}

func TestNewExpense(t *testing.T) {
	exp, err := NewExpense("scope-1", "alice", money.New(100, "USD"), EqualSplit(),
		[]string{"alice", "bob", "charlie"}, "groceries")
	if err != nil {
		t.Fatalf("NewExpense failed: %v", err)
	}
	if got := sumSplits(t, exp.Splits); got != 100 {
		t.Errorf("splits sum to %d, want 100", got)
	}

	_, err = NewExpense("scope-1", "dave", money.New(100, "USD"), EqualSplit(),
		[]string{"alice", "bob"}, "")
	if !errors.Is(err, ErrPayerNotParticipant) {
		t.Errorf("payer outside participants: got %v, want ErrPayerNotParticipant", err)
	}

	_, err = NewExpense("scope-1", "alice", money.New(100, "USD"), EqualSplit(), nil, "")
	if !errors.Is(err, ErrEmptyParticipants) {
		t.Errorf("empty participants: got %v, want ErrEmptyParticipants", err)
	}
}
