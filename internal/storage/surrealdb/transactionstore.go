package surrealdb

import (
	"context"
	"fmt"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// transactionSelectFields lists the fields to select from transactions,
// aliasing tx_id to id for struct mapping. Selecting the raw record id would
// hand the decoder a RecordID where the model expects a string.
const transactionSelectFields = `tx_id AS id, user_id, type, ticker, shares, price,
	currency, fx_rate, amount, note, date, created_at`

// TransactionStore is the append-only audit log backing each portfolio.
type TransactionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewTransactionStore(db *surrealdb.DB, logger *common.Logger) *TransactionStore {
	return &TransactionStore{
		db:     db,
		logger: logger,
	}
}

func (s *TransactionStore) Append(ctx context.Context, tx *models.Transaction) error {
	sql := `CREATE $rid SET
		tx_id = $tx_id, user_id = $user_id, type = $type, ticker = $ticker,
		shares = $shares, price = $price, currency = $currency, fx_rate = $fx_rate,
		amount = $amount, note = $note, date = $date, created_at = $created_at`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("transactions", tx.ID),
		"tx_id":      tx.ID,
		"user_id":    tx.UserID,
		"type":       tx.Type,
		"ticker":     tx.Ticker,
		"shares":     tx.Shares,
		"price":      tx.Price,
		"currency":   tx.Currency,
		"fx_rate":    tx.FXRate,
		"amount":     tx.Amount,
		"note":       tx.Note,
		"date":       tx.Date,
		"created_at": tx.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) List(ctx context.Context, userID string, opts interfaces.QueryOptions) ([]*models.Transaction, error) {
	order := "DESC"
	if opts.OrderBy == "date_asc" {
		order = "ASC"
	}

	sql := "SELECT " + transactionSelectFields + " FROM transactions WHERE user_id = $user_id ORDER BY date " + order
	vars := map[string]any{"user_id": userID}
	if opts.Limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = opts.Limit
	}

	results, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]*models.Transaction, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			tx := (*results)[0].Result[i]
			txs = append(txs, &tx)
		}
	}
	return txs, nil
}

func (s *TransactionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	// The deleted rows carry the raw record id, so they are counted through
	// a thin shape instead of the model.
	type deletedRow struct {
		TxID string `json:"tx_id"`
	}

	sql := "DELETE transactions WHERE user_id = $user_id RETURN BEFORE"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]deletedRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}
