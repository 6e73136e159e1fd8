package ledger

import (
	"github.com/brunomvsouza/ynab.go"
	"github.com/brunomvsouza/ynab.go/api/account"
	"github.com/brunomvsouza/ynab.go/api/transaction"
)

// YNABClient wraps the YNAB client, exposing only what the sync needs.
type YNABClient struct {
	client ynab.ClientServicer
}

// AccountService wraps the original account service
type AccountService struct {
	original *account.Service
}

// TransactionService wraps the original transaction service
type TransactionService struct {
	original *transaction.Service
}

func New(token string) *YNABClient {
	return &YNABClient{
		client: ynab.NewClient(token),
	}
}

// Verify checks the access token by fetching the authenticated user.
func (c *YNABClient) Verify() error {
	_, err := c.client.User().GetUser()
	return err
}

func (c *YNABClient) Account() *AccountService {
	return &AccountService{original: c.client.Account()}
}

func (c *YNABClient) Transaction() *TransactionService {
	return &TransactionService{original: c.client.Transaction()}
}

// GetAccounts returns every account of the budget along with the server
// knowledge the listing was taken at.
func (as *AccountService) GetAccounts(budgetID string) ([]Account, uint64, error) {
	snapshot, err := as.original.GetAccounts(budgetID, nil)
	if err != nil {
		return nil, 0, err
	}
	if snapshot == nil {
		return nil, 0, nil
	}

	accounts := make([]Account, 0, len(snapshot.Accounts))
	for _, a := range snapshot.Accounts {
		if a == nil {
			continue
		}
		accounts = append(accounts, Account{
			ID:      a.ID,
			Name:    a.Name,
			Closed:  a.Closed,
			Deleted: a.Deleted,
		})
	}
	return accounts, snapshot.ServerKnowledge, nil
}

// CreateTransactions creates multiple transactions in one API call. Rows whose
// import id the budget has already seen come back as duplicates and are not
// created again.
func (ts *TransactionService) CreateTransactions(budgetID string, payloads []transaction.PayloadTransaction) (*ImportSummary, error) {
	if len(payloads) == 0 {
		return &ImportSummary{}, nil
	}
	summary, err := ts.original.CreateTransactions(budgetID, payloads)
	if err != nil {
		return nil, err
	}

	out := &ImportSummary{Submitted: len(payloads)}
	if summary != nil {
		out.Created = len(summary.Transactions)
		out.Duplicates = len(summary.DuplicateImportIDs)
	}
	return out, nil
}
