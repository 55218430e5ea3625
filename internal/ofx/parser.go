// Package ofx converts OFX/QFX bank exports into expenses.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/ledgersmith/coinsort/internal/model"
)

// Parser reads OFX and QFX statement files.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

var (
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess repairs formatting quirks seen in real bank exports before the
// strict parser runs: mixed-case severity values and SGML tags missing their
// closing bracket.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagRe.ReplaceAllString(content, "$1>")
}

// ParseFile parses an OFX/QFX file into expenses. Individual malformed
// statements are skipped with a warning rather than failing the whole file.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Expense, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var expenses []model.Expense
	statements := 0

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		statements++
		for _, tx := range stmt.BankTranList.Transactions {
			expenses = append(expenses, p.convert(tx))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		statements++
		for _, tx := range stmt.BankTranList.Transactions {
			expenses = append(expenses, p.convert(tx))
		}
	}

	slog.Info("Parsed OFX file",
		"expenses", len(expenses),
		"statements", statements)

	return expenses, nil
}

// convert maps one OFX transaction onto an expense. Amounts are stored as
// positive magnitudes; OFX encodes debits as negative.
func (p *Parser) convert(tx ofxgo.Transaction) model.Expense {
	amount := decimal.NewFromBigRat(&tx.TrnAmt.Rat, 2)
	if amount.IsNegative() {
		amount = amount.Neg()
	}

	expense := model.Expense{
		ID:           string(tx.FiTID),
		MerchantName: extractMerchantName(tx),
		Description:  strings.TrimSpace(string(tx.Memo)),
		Amount:       amount,
		OccurredAt:   tx.DtPosted.Time,
	}
	if expense.Description == "" {
		expense.Description = strings.TrimSpace(string(tx.Name))
	}
	return expense
}

// processorPrefixes are bank-added prefixes stripped from transaction names.
var processorPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName picks the cleanest merchant string available.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericName(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range processorPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " date stamps carry no merchant information.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericName reports whether a transaction name carries no merchant
// information of its own.
func isGenericName(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
