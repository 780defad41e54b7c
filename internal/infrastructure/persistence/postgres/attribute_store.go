package postgres

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/repository"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

const (
	// SQLSTATE insufficient_privilege
	sqlStateInsufficientPrivilege = "42501"
	// SQLSTATE read_only_sql_transaction
	sqlStateReadOnlyTransaction = "25006"
)

// userAttributeRecord is the row holding the second-factor attributes of one user.
type userAttributeRecord struct {
	Username         string `gorm:"primaryKey;size:255"`
	Secret           string `gorm:"size:255"`
	Confirmed        bool   `gorm:"not null;default:false"`
	TransactionState string `gorm:"size:32;not null;default:absent"`
	TransactionID    string `gorm:"size:255"`
	UpdatedAt        time.Time
}

func (userAttributeRecord) TableName() string {
	return "mfa_user_attributes"
}

func recordFromAttributes(username string, attrs *models.UserAttributes) *userAttributeRecord {
	return &userAttributeRecord{
		Username:         username,
		Secret:           attrs.EncodedSecret,
		Confirmed:        attrs.Confirmed,
		TransactionState: attrs.Transaction.Status.String(),
		TransactionID:    attrs.Transaction.ID,
	}
}

func (r *userAttributeRecord) attributes() *models.UserAttributes {
	tx := models.TransactionState{Status: models.ParseTransactionStatus(r.TransactionState)}
	if tx.Status == models.TransactionPending {
		tx.ID = r.TransactionID
	}
	return &models.UserAttributes{
		EncodedSecret: r.Secret,
		Confirmed:     r.Confirmed,
		Transaction:   tx,
	}
}

// AttributeStore implements repository.SecretStore on a SQL table.
type AttributeStore struct {
	db      *gorm.DB
	logger  logger.Logger
	metrics service.Metrics
}

var _ repository.SecretStore = (*AttributeStore)(nil)

// NewAttributeStore creates a SQL-backed SecretStore.
func NewAttributeStore(db *gorm.DB, log logger.Logger, metrics service.Metrics) *AttributeStore {
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	return &AttributeStore{db: db, logger: log.WithComponent("attribute_store"), metrics: metrics}
}

// AutoMigrate creates or updates the attribute table.
func (s *AttributeStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&userAttributeRecord{})
}

// Get loads the attributes of username; a missing row yields zero attributes.
func (s *AttributeStore) Get(ctx context.Context, username string) (*models.UserAttributes, error) {
	start := time.Now()
	var record userAttributeRecord
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&record).Error
	s.metrics.RecordStoreOperation("sql_get", time.Since(start), ignoreNotFound(err))

	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UserAttributes{}, nil
		}
		s.logger.Error(ctx, "Failed to read user attributes", err, logger.String("username", username))
		return nil, errors.Wrap(err, errors.ErrServiceUnavailable)
	}
	return record.attributes(), nil
}

// Set upserts every attribute column in one statement.
func (s *AttributeStore) Set(ctx context.Context, username string, attrs *models.UserAttributes) error {
	start := time.Now()
	record := recordFromAttributes(username, attrs)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"secret", "confirmed", "transaction_state", "transaction_id", "updated_at"}),
	}).Create(record).Error
	s.metrics.RecordStoreOperation("sql_set", time.Since(start), err)

	if err != nil {
		return s.mapWriteError(ctx, username, err)
	}
	return nil
}

// CompareAndSwapTransaction is a conditional UPDATE; exactly one concurrent caller sees a changed row.
func (s *AttributeStore) CompareAndSwapTransaction(ctx context.Context, username string, expected, next models.TransactionState) (bool, error) {
	start := time.Now()
	query := s.db.WithContext(ctx).Model(&userAttributeRecord{}).
		Where("username = ? AND transaction_state = ?", username, expected.Status.String())
	if expected.Status == models.TransactionPending {
		query = query.Where("transaction_id = ?", expected.ID)
	}

	result := query.Updates(map[string]interface{}{
		"transaction_state": next.Status.String(),
		"transaction_id":    next.ID,
		"updated_at":        time.Now(),
	})
	s.metrics.RecordStoreOperation("sql_cas", time.Since(start), result.Error)

	if result.Error != nil {
		return false, s.mapWriteError(ctx, username, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Delete removes the attribute row of username.
func (s *AttributeStore) Delete(ctx context.Context, username string) error {
	err := s.db.WithContext(ctx).Where("username = ?", username).Delete(&userAttributeRecord{}).Error
	if err != nil {
		return s.mapWriteError(ctx, username, err)
	}
	return nil
}

// mapWriteError turns permission and read-only refusals into ErrAttributeStorageUnsupported.
func (s *AttributeStore) mapWriteError(ctx context.Context, username string, err error) error {
	if isUnsupportedWrite(err) {
		s.logger.Warn(ctx, "Attribute storage refused write", logger.String("username", username), logger.String("cause", err.Error()))
		return errors.Wrap(err, errors.ErrAttributeStorageUnsupported)
	}
	s.logger.Error(ctx, "Failed to write user attributes", err, logger.String("username", username))
	return errors.Wrap(err, errors.ErrServiceUnavailable)
}

func isUnsupportedWrite(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == sqlStateInsufficientPrivilege || pgErr.Code == sqlStateReadOnlyTransaction
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "readonly database") || strings.Contains(msg, "read-only")
}

func ignoreNotFound(err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
