package customer

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/db"
)

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupService(t *testing.T) Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "customer.db")
	conn, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(conn); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	if err := Migrate(context.Background(), conn, silentLogger()); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := NewRepository(conn, silentLogger())
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	svc, err := NewService(repo, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	return svc
}

func purchase(sellerID uint, email string, priceCents int64) PurchaseInput {
	return PurchaseInput{
		SellerID:   sellerID,
		Email:      email,
		ProductID:  10,
		PriceCents: priceCents,
		Currency:   "USD",
	}
}

func TestRecordPurchaseUpsertsCustomer(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.RecordPurchase(ctx, purchase(1, "ada@example.com", 1000)); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}
	if _, err := svc.RecordPurchase(ctx, purchase(1, "ada@example.com", 2500)); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}

	summaries, err := svc.Customers(ctx, 1)
	if err != nil {
		t.Fatalf("Customers returned error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one customer after repeat purchases, got %d", len(summaries))
	}
	if summaries[0].PurchaseCount != 2 || summaries[0].TotalSpentCents != 3500 {
		t.Fatalf("unexpected aggregates: %+v", summaries[0])
	}
	if summaries[0].LastPurchaseAt == nil {
		t.Fatalf("expected last purchase timestamp")
	}
}

func TestCustomersOrderedByTotalSpent(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.RecordPurchase(ctx, purchase(1, "small@example.com", 500)); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}
	if _, err := svc.RecordPurchase(ctx, purchase(1, "big@example.com", 9000)); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}

	summaries, err := svc.Customers(ctx, 1)
	if err != nil {
		t.Fatalf("Customers returned error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected two customers, got %d", len(summaries))
	}
	if summaries[0].Customer.Email != "big@example.com" {
		t.Fatalf("expected biggest spender first, got %s", summaries[0].Customer.Email)
	}
}

func TestCustomersScopedBySeller(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.RecordPurchase(ctx, purchase(1, "ada@example.com", 1000)); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}
	if _, err := svc.RecordPurchase(ctx, purchase(2, "ada@example.com", 1000)); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}

	first, err := svc.Customers(ctx, 1)
	if err != nil {
		t.Fatalf("Customers returned error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected the same email to be a separate customer per seller, got %d", len(first))
	}
}

func TestPurchaseHistory(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	older := purchase(1, "ada@example.com", 1000)
	older.PurchasedAt = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := purchase(1, "ada@example.com", 2000)
	newer.PurchasedAt = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	if _, err := svc.RecordPurchase(ctx, older); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}
	if _, err := svc.RecordPurchase(ctx, newer); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}

	summaries, err := svc.Customers(ctx, 1)
	if err != nil {
		t.Fatalf("Customers returned error: %v", err)
	}

	history, err := svc.PurchaseHistory(ctx, summaries[0].Customer.ExternalID)
	if err != nil {
		t.Fatalf("PurchaseHistory returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two purchases, got %d", len(history))
	}
	if history[0].PriceCents != 2000 {
		t.Fatalf("expected newest purchase first, got %d", history[0].PriceCents)
	}
}

func TestPurchaseHistoryUnknownCustomer(t *testing.T) {
	t.Parallel()

	svc := setupService(t)

	_, err := svc.PurchaseHistory(context.Background(), "no-such-customer")
	if !eris.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got: %v", err)
	}
}

func TestRecordPurchaseRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	svc := setupService(t)

	bad := purchase(1, "not-an-email", 1000)
	if _, err := svc.RecordPurchase(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
}
