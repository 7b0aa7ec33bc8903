package transaction

import domain "github.com/amirasaad/ebanking/pkg/domain/transaction"

const (
	// DefaultAccountIBAN applies to submissions that omit an account.
	DefaultAccountIBAN = "CH93-0000-0000-0000-0000-0"
	// DefaultDescription applies to submissions that omit a description.
	DefaultDescription = "Online payment"
)

// AddTransactionRequest is read from the query string or a form/JSON body.
type AddTransactionRequest struct {
	Amount        string `query:"amount" form:"amount" json:"amount" validate:"required"`
	Currency      string `query:"currency" form:"currency" json:"currency"`
	AccountIBAN   string `query:"accountIban" form:"accountIban" json:"accountIban"`
	Description   string `query:"description" form:"description" json:"description"`
	ValueDate     string `query:"valueDate" form:"valueDate" json:"valueDate"`
	TransactionID string `query:"transactionId" form:"transactionId" json:"transactionId" validate:"omitempty,uuid"`
}

// AddTransactionResponse confirms the log accepted the transaction.
type AddTransactionResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	CustomerID    string `json:"customerId"`
}

// GetTransactionsRequest selects one page of a month. Size is a pointer so
// an explicit zero is rejected instead of replaced by the default.
type GetTransactionsRequest struct {
	Month        int    `query:"month" validate:"required"`
	Year         int    `query:"year" validate:"required"`
	Page         int    `query:"page"`
	Size         *int   `query:"size"`
	BaseCurrency string `query:"baseCurrency"`
}

// TransactionPage is one page of transactions plus totals over the month.
// Totals are fixed two-decimal strings in the base currency.
type TransactionPage struct {
	Transactions       []domain.Transaction `json:"transactions"`
	TotalCredit        string               `json:"totalCredit"`
	TotalDebit         string               `json:"totalDebit"`
	BaseCurrency       string               `json:"baseCurrency"`
	Page               int                  `json:"page"`
	Size               int                  `json:"size"`
	TotalPages         int                  `json:"totalPages"`
	TotalElements      int64                `json:"totalElements"`
	First              bool                 `json:"first"`
	Last               bool                 `json:"last"`
	ExcludedFromTotals []string             `json:"excludedFromTotals"`
}

// SendTransactionsRequest asks for count generated test transactions.
type SendTransactionsRequest struct {
	Count int `query:"count" form:"count" json:"count" validate:"required,min=1,max=100"`
}

// SendTransactionsResponse lists the published test transactions.
type SendTransactionsResponse struct {
	Sent           int      `json:"sent"`
	TransactionIDs []string `json:"transactionIds"`
}
