package transaction

import (
	"github.com/amirasaad/ebanking/pkg/config"
	"github.com/amirasaad/ebanking/pkg/currency"
	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/amirasaad/ebanking/pkg/middleware"
	authsvc "github.com/amirasaad/ebanking/pkg/service/auth"
	txsvc "github.com/amirasaad/ebanking/pkg/service/transaction"
	"github.com/amirasaad/ebanking/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

// Routes registers the transaction endpoints. All of them require a valid
// bearer token whose subject is the customer id.
//
// Routes:
//   - POST /api/v1/addTransaction        : Publish one transaction to the log.
//   - GET  /api/v1/getTransaction        : Page a month with converted totals.
//   - POST /api/v1/test/sendTransactions : Publish generated test transactions.
func Routes(
	app *fiber.App,
	producer *txsvc.Producer,
	query *txsvc.QueryService,
	tokenSvc *authsvc.TokenService,
	cfg *config.App,
) {
	api := app.Group("/api/v1", middleware.JwtProtected(cfg.Auth.Jwt))
	api.Post("/addTransaction", AddTransaction(producer, tokenSvc))
	api.Get("/getTransaction", GetTransactions(query, tokenSvc))
	api.Post("/test/sendTransactions", SendTestTransactions(producer, tokenSvc))
}

// AddTransaction publishes a transaction for the authenticated customer.
// The response is sent once the log acknowledged the record; persistence
// happens asynchronously.
// @Summary Submit a transaction
// @Tags transactions
// @Produce json
// @Param amount query string true "Signed amount, positive for credit"
// @Param currency query string false "ISO 4217 code" default(USD)
// @Param accountIban query string false "Account IBAN"
// @Param description query string false "Description"
// @Param valueDate query string false "yyyy-MM-dd, today when omitted"
// @Param transactionId query string false "Id to reuse when resubmitting"
// @Success 201 {object} AddTransactionResponse
// @Failure 400 {object} middleware.ErrorBody
// @Failure 401 {object} middleware.ErrorBody
// @Failure 500 {object} middleware.ErrorBody
// @Router /api/v1/addTransaction [post]
// @Security Bearer
func AddTransaction(producer *txsvc.Producer, tokenSvc *authsvc.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := common.CurrentCustomer(c, tokenSvc)
		if err != nil {
			return common.ErrorResponseJSON(c, err)
		}
		input, err := common.BindAndValidate[AddTransactionRequest](c)
		if input == nil {
			return err // error response already written
		}
		amount, err := decimal.NewFromString(input.Amount)
		if err != nil {
			return middleware.ErrorJSON(c, fiber.StatusBadRequest, "amount must be a decimal number")
		}
		req := txsvc.SubmitRequest{
			ID:          input.TransactionID,
			Amount:      amount,
			Currency:    input.Currency,
			AccountIBAN: input.AccountIBAN,
			Description: input.Description,
			ValueDate:   input.ValueDate,
		}
		if req.AccountIBAN == "" {
			req.AccountIBAN = DefaultAccountIBAN
		}
		if req.Description == "" {
			req.Description = DefaultDescription
		}

		receipt, err := producer.Submit(c.UserContext(), customerID, req)
		if err != nil {
			log.Errorf("Failed to submit transaction for %s: %v", customerID, err)
			return common.ErrorResponseJSON(c, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, AddTransactionResponse{
			Message:       "Transaction created successfully",
			TransactionID: receipt.TransactionID,
			Status:        receipt.Status,
			CustomerID:    receipt.CustomerID,
		})
	}
}

// GetTransactions returns one page of the authenticated customer's month
// with credit and debit totals over the whole month.
// @Summary List a month of transactions
// @Tags transactions
// @Produce json
// @Param month query int true "1-12"
// @Param year query int true "Year"
// @Param page query int false "Zero-based page" default(0)
// @Param size query int false "Page size" default(20)
// @Param baseCurrency query string false "Currency of the totals" default(GBP)
// @Success 200 {object} TransactionPage
// @Failure 400 {object} middleware.ErrorBody
// @Failure 401 {object} middleware.ErrorBody
// @Failure 500 {object} middleware.ErrorBody
// @Router /api/v1/getTransaction [get]
// @Security Bearer
func GetTransactions(query *txsvc.QueryService, tokenSvc *authsvc.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := common.CurrentCustomer(c, tokenSvc)
		if err != nil {
			return common.ErrorResponseJSON(c, err)
		}
		input, err := common.BindAndValidate[GetTransactionsRequest](c)
		if input == nil {
			return err // error response already written
		}
		q := txsvc.Query{
			Month:        input.Month,
			Year:         input.Year,
			Page:         input.Page,
			Size:         txsvc.DefaultPageSize,
			BaseCurrency: input.BaseCurrency,
		}
		if input.Size != nil {
			q.Size = *input.Size
		}
		if q.BaseCurrency == "" {
			q.BaseCurrency = currency.DefaultBase
		}

		res, err := query.GetTransactions(c.UserContext(), customerID, q)
		if err != nil {
			return common.ErrorResponseJSON(c, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, toPage(res))
	}
}

// SendTestTransactions publishes count generated transactions for the
// authenticated customer.
// @Summary Publish test transactions
// @Tags transactions
// @Produce json
// @Param count query int true "1-100"
// @Success 201 {object} SendTransactionsResponse
// @Failure 400 {object} middleware.ErrorBody
// @Failure 401 {object} middleware.ErrorBody
// @Failure 500 {object} middleware.ErrorBody
// @Router /api/v1/test/sendTransactions [post]
// @Security Bearer
func SendTestTransactions(producer *txsvc.Producer, tokenSvc *authsvc.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, err := common.CurrentCustomer(c, tokenSvc)
		if err != nil {
			return common.ErrorResponseJSON(c, err)
		}
		input, err := common.BindAndValidate[SendTransactionsRequest](c)
		if input == nil {
			return err // error response already written
		}
		receipts, err := producer.SeedTestTransactions(c.UserContext(), customerID, input.Count)
		if err != nil {
			log.Errorf("Seeding stopped after %d of %d transactions: %v", len(receipts), input.Count, err)
			return common.ErrorResponseJSON(c, err)
		}
		ids := make([]string, 0, len(receipts))
		for _, r := range receipts {
			ids = append(ids, r.TransactionID)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, SendTransactionsResponse{
			Sent:           len(ids),
			TransactionIDs: ids,
		})
	}
}

func toPage(res *txsvc.Result) TransactionPage {
	txs := res.Transactions
	if txs == nil {
		txs = []domain.Transaction{}
	}
	excluded := res.Excluded
	if excluded == nil {
		excluded = []string{}
	}
	return TransactionPage{
		Transactions:       txs,
		TotalCredit:        res.TotalCredit.StringFixed(currency.DefaultDecimals),
		TotalDebit:         res.TotalDebit.StringFixed(currency.DefaultDecimals),
		BaseCurrency:       res.BaseCurrency,
		Page:               res.Page,
		Size:               res.Size,
		TotalPages:         res.TotalPages,
		TotalElements:      res.TotalElements,
		First:              res.First,
		Last:               res.Last,
		ExcludedFromTotals: excluded,
	}
}
