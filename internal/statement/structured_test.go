package statement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStructuredParse(t *testing.T) {
	rec := NewStructuredRecognizer(zap.NewNop())

	text := "Absa Bank Statement\n" +
		"Statement Period: 01 October 2025 to 31 October 2025\n" +
		"Date Description Amount Balance\n" +
		"01/10/2025\n" +
		"EFT Payment N Dlamini\n" +
		"450.00\n" +
		"6,744.42Cr\n" +
		"Page 1 of 3\n" +
		"02/10/2025\n" +
		"DEBIT ORDER Liberty Life\n" +
		"-320.50\n" +
		"6,423.92Cr\n" +
		"3.50\n" +
		"Balance Brought Forward\n" +
		"03/10/2025\n" +
		"POS PURCHASE Woolworths\n" +
		"-185.99\n" +
		"6,237.93Cr\n"

	txs, err := rec.Parse(text)
	require.NoError(t, err)
	require.Len(t, txs, 3, "fee line after the second block must be consumed")

	assert.True(t, txs[0].Date.Equal(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(45000), txs[0].AmountCents)
	assert.True(t, txs[0].IsCredit)

	assert.Equal(t, int64(32050), txs[1].AmountCents)
	assert.False(t, txs[1].IsCredit)

	assert.Equal(t, "POS PURCHASE Woolworths", txs[2].Description)
	assert.Equal(t, "Woolworths", txs[2].Payee)
}

func TestStructuredDayMonthDatesUseBannerYear(t *testing.T) {
	rec := NewStructuredRecognizer(zap.NewNop())

	text := "ABSA\n" +
		"Statement Period: 01 June 2024 to 30 June 2024\n" +
		"14 Jun\n" +
		"School Fees M Botha\n" +
		"1,500.00\n" +
		"9,000.00Cr\n"

	txs, err := rec.Parse(text)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Date.Equal(time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC)))
}

func TestStructuredRecoversFromTruncatedBlock(t *testing.T) {
	rec := NewStructuredRecognizer(zap.NewNop())

	// The first block is missing its amount; the parser must resync on
	// the next date line and still emit the second block.
	text := "Absa\n" +
		"01/10/2025\n" +
		"Broken Block Description\n" +
		"02/10/2025\n" +
		"Intact Block\n" +
		"100.00\n" +
		"500.00Cr\n"

	txs, err := rec.Parse(text)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Intact Block", txs[0].Description)
}

func TestStructuredDetect(t *testing.T) {
	rec := NewStructuredRecognizer(zap.NewNop())
	assert.True(t, rec.Detect("Absa Bank"))
	assert.True(t, rec.Detect("ABSA"))
	assert.False(t, rec.Detect("Standard Bank"))
}
