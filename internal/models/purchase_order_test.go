package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPO(status POStatus) *PurchaseOrder {
	return &PurchaseOrder{
		POID:        "PO-20240101-120000-AB12",
		VendorName:  "Acme Supplies",
		OrderDate:   time.Now(),
		RequestedBy: "stocker1",
		Status:      status,
		Items: []POItem{
			{SKU: "SKU-A", ProductName: "Widget", QuantityOrdered: 10},
			{SKU: "SKU-B", ProductName: "Gadget", QuantityOrdered: 5},
		},
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to POStatus
		allowed  bool
	}{
		{StatusDraft, StatusSentToVendor, true},
		{StatusDraft, StatusShipped, false},
		{StatusDraft, StatusCancelled, false},
		{StatusSentToVendor, StatusShipped, true},
		{StatusSentToVendor, StatusCancelled, true},
		{StatusSentToVendor, StatusReceived, false},
		{StatusShipped, StatusPartiallyReceived, true},
		{StatusShipped, StatusReceived, true},
		{StatusShipped, StatusCancelled, false},
		{StatusPartiallyReceived, StatusPartiallyReceived, true},
		{StatusPartiallyReceived, StatusReceived, true},
		{StatusReceived, StatusDraft, false},
		{StatusReceived, StatusCancelled, false},
		{StatusCancelled, StatusSentToVendor, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusShipped.Receivable())
	assert.True(t, StatusPartiallyReceived.Receivable())
	assert.False(t, StatusDraft.Receivable())
	assert.False(t, StatusSentToVendor.Receivable())
	assert.False(t, StatusReceived.Receivable())

	assert.True(t, StatusReceived.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusDraft.Terminal())

	assert.True(t, StatusPartiallyReceived.Valid())
	assert.False(t, POStatus("Bogus").Valid())
}

func TestApplyReceiptPartialThenComplete(t *testing.T) {
	po := newTestPO(StatusShipped)

	result, err := po.ApplyReceipt(map[string]int{"SKU-A": 4})
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyReceived, result.NewStatus)
	assert.True(t, result.StatusChanged)
	assert.Equal(t, StatusPartiallyReceived, po.Status)
	assert.Equal(t, 4, po.Items[0].QuantityReceived)
	assert.Equal(t, 0, po.Items[1].QuantityReceived)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, ReceivedLine{SKU: "SKU-A", ProductName: "Widget", Quantity: 4}, result.Applied[0])

	result, err = po.ApplyReceipt(map[string]int{"SKU-A": 6, "SKU-B": 5})
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, result.NewStatus)
	assert.Equal(t, StatusReceived, po.Status)
	assert.Equal(t, 10, po.Items[0].QuantityReceived)
	assert.Equal(t, 5, po.Items[1].QuantityReceived)
	assert.Equal(t, po.TotalOrdered(), po.TotalReceived())

	// Terminal: a further receipt is rejected.
	_, err = po.ApplyReceipt(map[string]int{"SKU-A": 1})
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestApplyReceiptOverReceiptRejectsWholeCall(t *testing.T) {
	po := newTestPO(StatusShipped)

	// SKU-A is fine, SKU-B exceeds remaining: nothing may be applied.
	_, err := po.ApplyReceipt(map[string]int{"SKU-A": 3, "SKU-B": 6})
	require.Error(t, err)
	assert.Equal(t, KindInvalidQuantity, KindOf(err))
	assert.Equal(t, 0, po.Items[0].QuantityReceived)
	assert.Equal(t, 0, po.Items[1].QuantityReceived)
	assert.Equal(t, StatusShipped, po.Status)
}

func TestApplyReceiptNegativeQuantity(t *testing.T) {
	po := newTestPO(StatusShipped)

	_, err := po.ApplyReceipt(map[string]int{"SKU-A": -1})
	require.Error(t, err)
	assert.Equal(t, KindInvalidQuantity, KindOf(err))
	assert.Equal(t, 0, po.Items[0].QuantityReceived)
}

func TestApplyReceiptRespectsRemaining(t *testing.T) {
	po := newTestPO(StatusPartiallyReceived)
	po.Items[0].QuantityReceived = 7

	// 4 > remaining 3
	_, err := po.ApplyReceipt(map[string]int{"SKU-A": 4})
	require.Error(t, err)
	assert.Equal(t, KindInvalidQuantity, KindOf(err))
	assert.Equal(t, 7, po.Items[0].QuantityReceived)

	result, err := po.ApplyReceipt(map[string]int{"SKU-A": 3})
	require.NoError(t, err)
	assert.Equal(t, 10, po.Items[0].QuantityReceived)
	assert.Equal(t, StatusPartiallyReceived, result.NewStatus)
	assert.False(t, result.StatusChanged)
}

func TestApplyReceiptUnknownSKUIgnored(t *testing.T) {
	po := newTestPO(StatusShipped)

	result, err := po.ApplyReceipt(map[string]int{"SKU-X": 99, "SKU-A": 2})
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, "SKU-A", result.Applied[0].SKU)
	assert.Equal(t, 2, po.Items[0].QuantityReceived)
}

func TestApplyReceiptZeroIsNoOp(t *testing.T) {
	po := newTestPO(StatusShipped)

	result, err := po.ApplyReceipt(map[string]int{"SKU-A": 0})
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Equal(t, StatusShipped, po.Status)
	assert.False(t, result.StatusChanged)
	assert.Equal(t, "Items received. No new quantities entered.", result.HistoryAction())
}

func TestApplyReceiptNotReceivable(t *testing.T) {
	for _, status := range []POStatus{StatusDraft, StatusSentToVendor, StatusReceived, StatusCancelled} {
		po := newTestPO(status)
		_, err := po.ApplyReceipt(map[string]int{"SKU-A": 1})
		require.Error(t, err, "status %s", status)
		assert.Equal(t, KindInvalidState, KindOf(err))
	}
}

func TestReceiptHistoryAction(t *testing.T) {
	po := newTestPO(StatusShipped)

	result, err := po.ApplyReceipt(map[string]int{"SKU-A": 4, "SKU-B": 2})
	require.NoError(t, err)
	assert.Equal(t, "Items received. Details: SKU-A (Qty: 4); SKU-B (Qty: 2)", result.HistoryAction())
}

func TestReceivedNeverExceedsOrdered(t *testing.T) {
	po := newTestPO(StatusShipped)

	steps := []map[string]int{
		{"SKU-A": 5, "SKU-B": 1},
		{"SKU-A": 5},
		{"SKU-B": 4},
	}
	for _, step := range steps {
		_, err := po.ApplyReceipt(step)
		require.NoError(t, err)
		for _, it := range po.Items {
			assert.GreaterOrEqual(t, it.QuantityReceived, 0)
			assert.LessOrEqual(t, it.QuantityReceived, it.QuantityOrdered)
		}
	}
	assert.Equal(t, StatusReceived, po.Status)
}

func TestNewPOIDFormat(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)
	id := NewPOID(now)
	assert.Regexp(t, `^PO-20240315-093045-[0-9A-F]{4}$`, id)
}
