package balance

import (
	"errors"
	"testing"

	"github.com/splitledger/splitledger/internal/currency"
	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/money"
	"github.com/splitledger/splitledger/internal/settle"
)

func usd(amount int64) money.Money { return money.New(amount, "USD") }

func mustExpense(t *testing.T, payer string, total money.Money, method ledger.SplitMethod, participants []string) *ledger.Expense {
	t.Helper()
	exp, err := ledger.NewExpense("scope-1", payer, total, method, participants, "")
	if err != nil {
		t.Fatalf("NewExpense failed: %v", err)
	}
	return exp
}

func assertZeroSum(t *testing.T, balances map[string]money.Money) {
	t.Helper()
	var sum int64
	for _, b := range balances {
		sum += b.Amount
	}
	if sum != 0 {
		t.Errorf("balances sum to %d, want 0", sum)
	}
}

func TestComputeSingleExpense(t *testing.T) {
	// Alice pays 90.00 split equally three ways: she is owed 60.00.
	exp := mustExpense(t, "alice", usd(9000), ledger.EqualSplit(),
		[]string{"alice", "bob", "carol"})

	balances, err := Compute([]*ledger.Expense{exp}, nil, "USD", nil)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	assertZeroSum(t, balances)

	if got := balances["alice"].Amount; got != 6000 {
		t.Errorf("alice = %d, want 6000", got)
	}
	if got := balances["bob"].Amount; got != -3000 {
		t.Errorf("bob = %d, want -3000", got)
	}
	if got := balances["carol"].Amount; got != -3000 {
		t.Errorf("carol = %d, want -3000", got)
	}
}

func TestComputeSettlementOffsets(t *testing.T) {
	exp := mustExpense(t, "alice", usd(10000), ledger.EqualSplit(),
		[]string{"alice", "bob"})

	txn := &settle.Transaction{
		ID: "txn-1", ScopeID: "scope-1",
		FromID: "bob", ToID: "alice",
		Amount: usd(5000), Outstanding: usd(2000),
		Status: settle.StatusPartiallyPaid,
	}

	balances, err := Compute([]*ledger.Expense{exp}, []*settle.Transaction{txn}, "USD", nil)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	assertZeroSum(t, balances)

	// Bob owed 5000, has paid 3000 of it.
	if got := balances["bob"].Amount; got != -2000 {
		t.Errorf("bob = %d, want -2000", got)
	}
	if got := balances["alice"].Amount; got != 2000 {
		t.Errorf("alice = %d, want 2000", got)
	}
}

func TestComputePendingSettlementIgnored(t *testing.T) {
	exp := mustExpense(t, "alice", usd(100), ledger.EqualSplit(),
		[]string{"alice", "bob"})

	pending := &settle.Transaction{
		ID: "txn-1", FromID: "bob", ToID: "alice",
		Amount: usd(50), Outstanding: usd(50),
		Status: settle.StatusPending,
	}

	balances, err := Compute([]*ledger.Expense{exp}, []*settle.Transaction{pending}, "USD", nil)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got := balances["bob"].Amount; got != -50 {
		t.Errorf("bob = %d, want -50 (pending payments must not move balances)", got)
	}
}

func TestComputeMixedCurrencies(t *testing.T) {
	rates := currency.NewStaticProvider()
	rates.SetRat("EUR", "USD", 110, 100) // 1 EUR = 1.10 USD

	expUSD := mustExpense(t, "alice", usd(3000), ledger.EqualSplit(),
		[]string{"alice", "bob", "carol"})
	expEUR := mustExpense(t, "bob", money.New(1000, "EUR"), ledger.EqualSplit(),
		[]string{"alice", "bob", "carol"})

	balances, err := Compute([]*ledger.Expense{expUSD, expEUR}, nil, "USD", rates)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	assertZeroSum(t, balances)

	// EUR expense: total converts to 1100 USD cents; shares 334/333/333 EUR
	// convert to 367/366 and carol (last in id order) absorbs the residual.
	if got := balances["bob"].Amount; got != -1000+1100-366 {
		t.Errorf("bob = %d, want %d", got, -1000+1100-366)
	}
	if got := balances["carol"].Amount; got != -1000-367 {
		t.Errorf("carol = %d, want %d", got, -1000-367)
	}
}

func TestComputeMissingRate(t *testing.T) {
	exp := mustExpense(t, "alice", money.New(1000, "EUR"), ledger.EqualSplit(),
		[]string{"alice", "bob"})

	_, err := Compute([]*ledger.Expense{exp}, nil, "USD", currency.NewStaticProvider())
	if !errors.Is(err, currency.ErrNoRate) {
		t.Errorf("error = %v, want ErrNoRate", err)
	}
}

func TestComputeImbalanceDetected(t *testing.T) {
	// Hand-build a corrupted expense whose splits do not sum to the total.
	exp := &ledger.Expense{
		ID: "bad", ScopeID: "scope-1", PayerID: "alice",
		Total: usd(100),
		Splits: map[string]money.Money{
			"alice": usd(30),
			"bob":   usd(30), // 40 cents vanish
		},
	}

	_, err := Compute([]*ledger.Expense{exp}, nil, "USD", nil)
	if !errors.Is(err, ledger.ErrImbalance) {
		t.Errorf("error = %v, want ErrImbalance", err)
	}
}
