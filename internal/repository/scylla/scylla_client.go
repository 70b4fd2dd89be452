package scylla

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"geosnap-service/internal/config"
	"geosnap-service/internal/util"
)

// PreparedStatements holds the statements the OTP repository executes.
type PreparedStatements struct {
	CreateOTP       *gocql.Query
	ListOTPsByEmail *gocql.Query
	MarkOTPUsed     *gocql.Query
	ConsumeOTP      *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateOTP = s.Session.Query(`
        INSERT INTO otp_codes (email_hash, id, email, code, expires_at, used, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)

	prepared.ListOTPsByEmail = s.Session.Query(`
        SELECT id, email, code, expires_at, used, created_at
        FROM otp_codes WHERE email_hash = ?`)

	prepared.MarkOTPUsed = s.Session.Query(`
        UPDATE otp_codes SET used = true
        WHERE email_hash = ? AND id = ?`)

	// Lightweight transaction: the consume must lose when another
	// verification already flipped the flag.
	prepared.ConsumeOTP = s.Session.Query(`
        UPDATE otp_codes SET used = true
        WHERE email_hash = ? AND id = ?
        IF used = false`)

	s.Prepared = prepared
	s.isPrepared = true
	return nil
}

// ExecuteWithRetry executes a bound query, retrying transient failures.
func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = query.Exec(); err == nil {
			return nil
		}
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
		}
	}
	return err
}

func (s *ScyllaClient) HealthCheck() error {
	var now time.Time
	if err := s.Session.Query(`SELECT now() FROM system.local`).Scan(&now); err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
}
