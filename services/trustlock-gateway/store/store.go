package store

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"glittr/native/escrow"
	"glittr/native/ledger"
	"glittr/services/trustlock-gateway/models"
)

// Store persists gateway state through gorm and adapts the rows to the
// escrow engine's state interface. SQLite serves single-node deployments;
// a postgres:// DSN switches drivers without further changes.
type Store struct {
	db *gorm.DB
}

// Open connects to the database named by dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for middleware that persists through gorm.
func (s *Store) DB() *gorm.DB {
	return s.db
}

const fileSeparator = "\n"

func jobToRow(j *escrow.Job) *models.Job {
	row := &models.Job{
		ID:           j.ID,
		Title:        j.Title,
		Requirements: j.Requirements,
		Description:  j.Description,
		Client:       j.Client,
		Freelancer:   j.Freelancer,
		StakeSats:    int64(j.Stake),
		CounterSats:  int64(j.CounterStake),
		Deadline:     j.Deadline,
		CreatedAt:    j.CreatedAt,
		SubmittedAt:  j.SubmittedAt,
		Files:        strings.Join(j.Files, fileSeparator),
		Score:        j.Score,
		Notes:        j.Notes,
		Status:       j.Status.String(),
		Reason:       string(j.Reason),
		ContractID:   j.ContractID,
	}
	if j.Manifest != [32]byte{} {
		row.Manifest = hex.EncodeToString(j.Manifest[:])
	}
	return row
}

func rowToJob(row *models.Job) (*escrow.Job, error) {
	status, err := escrow.ParseJobStatus(row.Status)
	if err != nil {
		return nil, err
	}
	job := &escrow.Job{
		ID:           row.ID,
		Title:        row.Title,
		Requirements: row.Requirements,
		Description:  row.Description,
		Client:       row.Client,
		Freelancer:   row.Freelancer,
		Stake:        btcutil.Amount(row.StakeSats),
		CounterStake: btcutil.Amount(row.CounterSats),
		Deadline:     row.Deadline,
		CreatedAt:    row.CreatedAt,
		SubmittedAt:  row.SubmittedAt,
		Notes:        row.Notes,
		Status:       status,
		Reason:       escrow.DisputeReason(row.Reason),
		ContractID:   row.ContractID,
	}
	if row.Files != "" {
		job.Files = strings.Split(row.Files, fileSeparator)
	}
	if row.Score != nil {
		score := *row.Score
		job.Score = &score
	}
	if row.Manifest != "" {
		raw, err := hex.DecodeString(row.Manifest)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("store: corrupt manifest for job %s", row.ID)
		}
		copy(job.Manifest[:], raw)
	}
	return job, nil
}

// JobPut upserts a job row.
func (s *Store) JobPut(j *escrow.Job) error {
	row := jobToRow(j)
	row.UpdatedAt = time.Now()
	return s.db.Save(row).Error
}

// JobGet loads a job by id.
func (s *Store) JobGet(id string) (*escrow.Job, bool) {
	var row models.Job
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, false
	}
	job, err := rowToJob(&row)
	if err != nil {
		return nil, false
	}
	return job, true
}

// OfferPut upserts an offer row.
func (s *Store) OfferPut(o *escrow.JobOffer) error {
	row := &models.Offer{
		ID:           o.ID,
		Title:        o.Title,
		Client:       o.Client,
		StakeSats:    int64(o.Stake),
		RequiredSats: int64(o.Required),
		DurationDays: o.DurationDays,
		Skills:       strings.Join(o.Skills, ","),
		Description:  o.Description,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    time.Now(),
	}
	return s.db.Save(row).Error
}

// OfferGet loads an offer by id.
func (s *Store) OfferGet(id string) (*escrow.JobOffer, bool) {
	var row models.Offer
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, false
	}
	offer := &escrow.JobOffer{
		ID:           row.ID,
		Title:        row.Title,
		Client:       row.Client,
		Stake:        btcutil.Amount(row.StakeSats),
		Required:     btcutil.Amount(row.RequiredSats),
		DurationDays: row.DurationDays,
		Description:  row.Description,
		CreatedAt:    row.CreatedAt,
	}
	if row.Skills != "" {
		offer.Skills = strings.Split(row.Skills, ",")
	}
	return offer, true
}

// OfferDelete removes an accepted or withdrawn offer.
func (s *Store) OfferDelete(id string) error {
	return s.db.Delete(&models.Offer{}, "id = ?", id).Error
}

// ContractPut upserts a contract row.
func (s *Store) ContractPut(c *escrow.Contract) error {
	row := &models.Contract{
		ID:        c.ID,
		Address:   c.Address,
		JobID:     c.JobID,
		CreatedAt: c.CreatedAt,
		Status:    string(c.Status),
		UpdatedAt: time.Now(),
	}
	return s.db.Save(row).Error
}

// ContractGet loads a contract by id.
func (s *Store) ContractGet(id string) (*escrow.Contract, bool) {
	var row models.Contract
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, false
	}
	return &escrow.Contract{
		ID:        row.ID,
		Address:   row.Address,
		JobID:     row.JobID,
		CreatedAt: row.CreatedAt,
		Status:    escrow.ContractStatus(row.Status),
	}, true
}

// ListJobs returns jobs filtered by optional status and participant, newest
// first.
func (s *Store) ListJobs(status, participant string, limit int) ([]*escrow.Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.Model(&models.Job{}).Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if participant != "" {
		query = query.Where("client = ? OR freelancer = ?", participant, participant)
	}
	var rows []models.Job
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	jobs := make([]*escrow.Job, 0, len(rows))
	for i := range rows {
		job, err := rowToJob(&rows[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ListOffers returns open offers, newest first.
func (s *Store) ListOffers(limit int) ([]*escrow.JobOffer, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.Offer
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	offers := make([]*escrow.JobOffer, 0, len(rows))
	for i := range rows {
		row := rows[i]
		offer := &escrow.JobOffer{
			ID:           row.ID,
			Title:        row.Title,
			Client:       row.Client,
			Stake:        btcutil.Amount(row.StakeSats),
			Required:     btcutil.Amount(row.RequiredSats),
			DurationDays: row.DurationDays,
			Description:  row.Description,
			CreatedAt:    row.CreatedAt,
		}
		if row.Skills != "" {
			offer.Skills = strings.Split(row.Skills, ",")
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// OverdueJobs returns non-terminal jobs whose deadline has passed, for the
// deadline watcher to dispute.
func (s *Store) OverdueJobs(now int64) ([]string, error) {
	var ids []string
	err := s.db.Model(&models.Job{}).
		Where("status IN ?", []string{escrow.JobInProgress.String(), escrow.JobSubmitted.String()}).
		Where("deadline <= ?", now).
		Pluck("id", &ids).Error
	return ids, err
}

// SaveWallets rewrites the wallet snapshot from the ledger's current state.
func (s *Store) SaveWallets(accounts map[string]ledger.Account) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for actor, acct := range accounts {
			row := &models.WalletAccount{
				Actor:      actor,
				Balance:    int64(acct.Balance),
				StakeTotal: int64(acct.StakeTotal),
				AtRisk:     int64(acct.AtRisk),
				Locked:     int64(acct.Locked),
				UpdatedAt:  time.Now(),
			}
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadWallets rebuilds the ledger snapshot from persisted rows.
func (s *Store) LoadWallets() (map[string]ledger.Account, error) {
	var rows []models.WalletAccount
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make(map[string]ledger.Account, len(rows))
	for _, row := range rows {
		accounts[row.Actor] = ledger.Account{
			Balance:    btcutil.Amount(row.Balance),
			StakeTotal: btcutil.Amount(row.StakeTotal),
			AtRisk:     btcutil.Amount(row.AtRisk),
			Locked:     btcutil.Amount(row.Locked),
		}
	}
	return accounts, nil
}

// AppendSettlement writes the audit row for a job that reached a terminal
// state.
func (s *Store) AppendSettlement(job *escrow.Job, clientSats, freelancerSats btcutil.Amount) error {
	record := &models.SettlementRecord{
		ID:             uuid.New(),
		JobID:          job.ID,
		Client:         job.Client,
		Freelancer:     job.Freelancer,
		Outcome:        job.Status.String(),
		Reason:         string(job.Reason),
		StakeSats:      int64(job.Stake),
		CounterSats:    int64(job.CounterStake),
		ClientSats:     int64(clientSats),
		FreelancerSats: int64(freelancerSats),
		SettledAt:      time.Now(),
	}
	return s.db.Create(record).Error
}

// SettlementsSince returns settlement rows at or after the cutoff, oldest
// first, for the reconciliation exporter.
func (s *Store) SettlementsSince(cutoff time.Time) ([]models.SettlementRecord, error) {
	var rows []models.SettlementRecord
	err := s.db.Where("settled_at >= ?", cutoff).Order("settled_at ASC").Find(&rows).Error
	return rows, err
}
