package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
<MEMO>weekly groceries
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "valid bank statement",
			ofxData:       sampleBankOFX,
			expectedCount: 2,
			expectedError: false,
		},
		{
			name:          "valid credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 2,
			expectedError: false,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedCount: 0,
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedCount: 0,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser()
			reader := strings.NewReader(tt.ofxData)

			expenses, err := parser.ParseFile(context.Background(), reader)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, expenses, tt.expectedCount)
			}
		})
	}
}

func TestParseBankTransactions(t *testing.T) {
	parser := NewParser()
	reader := strings.NewReader(sampleBankOFX)

	expenses, err := parser.ParseFile(context.Background(), reader)
	require.NoError(t, err)
	require.Len(t, expenses, 2)

	starbucks := expenses[0]
	assert.Equal(t, "2024011501", starbucks.ID)
	assert.Equal(t, "STARBUCKS STORE #1234", starbucks.MerchantName)
	assert.Equal(t, "STARBUCKS STORE #1234", starbucks.Description, "name stands in when the memo is empty")
	assert.True(t, starbucks.Amount.Equal(decimal.RequireFromString("25.50")), "debits become positive magnitudes")
	assert.Equal(t, 2024, starbucks.OccurredAt.Year())
	assert.Equal(t, time.January, starbucks.OccurredAt.Month())
	assert.Equal(t, 15, starbucks.OccurredAt.Day())

	wholeFoods := expenses[1]
	assert.Equal(t, "2024012001", wholeFoods.ID)
	assert.Equal(t, "Whole Foods Market", wholeFoods.MerchantName)
	assert.Equal(t, "weekly groceries", wholeFoods.Description)
	assert.True(t, wholeFoods.Amount.Equal(decimal.RequireFromString("125.00")))
}

func TestParseCreditCardTransactions(t *testing.T) {
	parser := NewParser()
	reader := strings.NewReader(sampleCreditCardOFX)

	expenses, err := parser.ParseFile(context.Background(), reader)
	require.NoError(t, err)
	require.Len(t, expenses, 2)

	amazon := expenses[0]
	assert.Equal(t, "CC2024011001", amazon.ID)
	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", amazon.MerchantName)
	assert.True(t, amazon.Amount.Equal(decimal.RequireFromString("45.99")))

	netflix := expenses[1]
	assert.Equal(t, "CC2024011501", netflix.ID)
	assert.Equal(t, "NETFLIX.COM", netflix.MerchantName)
	assert.True(t, netflix.Amount.Equal(decimal.RequireFromString("15.00")))
}

func TestExtractMerchantName(t *testing.T) {
	tests := []struct {
		name     string
		txName   string
		memo     string
		expected string
	}{
		{
			name:     "remove POS prefix",
			txName:   "POS PURCHASE STARBUCKS",
			expected: "STARBUCKS",
		},
		{
			name:     "remove debit card prefix",
			txName:   "DEBIT CARD PURCHASE WHOLE FOODS",
			expected: "WHOLE FOODS",
		},
		{
			name:     "keep clean name",
			txName:   "NETFLIX.COM",
			expected: "NETFLIX.COM",
		},
		{
			name:     "trim whitespace",
			txName:   "  AMAZON.COM  ",
			expected: "AMAZON.COM",
		},
		{
			name:     "strip leading date stamp",
			txName:   "01/15 UBER TRIP",
			expected: "UBER TRIP",
		},
		{
			name:     "generic name falls back to memo",
			txName:   "DEBIT",
			memo:     "BLUE BOTTLE COFFEE",
			expected: "BLUE BOTTLE COFFEE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ofxgo.Transaction{
				Name: ofxgo.String(tt.txName),
				Memo: ofxgo.String(tt.memo),
			}
			assert.Equal(t, tt.expected, extractMerchantName(tx))
		})
	}
}

func TestExtractMerchantNamePrefersPayee(t *testing.T) {
	tx := ofxgo.Transaction{
		Name:  ofxgo.String("POS PURCHASE SOMETHING"),
		Payee: &ofxgo.Payee{Name: ofxgo.String("Blue Bottle Coffee")},
	}
	assert.Equal(t, "Blue Bottle Coffee", extractMerchantName(tx))
}

func TestPreprocessRepairsSGMLQuirks(t *testing.T) {
	parser := NewParser()

	repaired := parser.preprocess("  \n<SEVERITY>Info</SEVERITY>")
	assert.Equal(t, "<SEVERITY>INFO</SEVERITY>", repaired)

	repaired = parser.preprocess("<BANKTRANLIST\n")
	assert.Equal(t, "<BANKTRANLIST>\n", repaired)
}
