package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"trailmark/internal/config"
)

// IntegrationSuite starts a migrated Postgres and a single nsqd for
// tests that need the real storage and transport.
type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	NSQ      *nsq.Producer
	DBHost   string
	DBPort   int
	NSQDAddr string
	NSQDHTTP string

	pgContainer  *postgres.PostgresContainer
	nsqContainer testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

func (s *IntegrationSuite) Setup() {
	s.SetupDB()
	s.SetupNSQ()
}

func (s *IntegrationSuite) SetupDB() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("trailmark_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DBHost, err = pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(s.T, err)
	s.DBPort = pgPort.Int()

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	m, err := migrate.New(MigrationPath(), connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())
}

func (s *IntegrationSuite) SetupNSQ() {
	ctx := context.Background()

	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost", "--mem-queue-size=0"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	nsqHost, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	tcpPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)
	httpPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)

	s.NSQDAddr = fmt.Sprintf("%s:%s", nsqHost, tcpPort.Port())
	s.NSQDHTTP = fmt.Sprintf("%s:%s", nsqHost, httpPort.Port())

	s.NSQ, err = nsq.NewProducer(s.NSQDAddr, nsq.NewConfig())
	require.NoError(s.T, err)
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}

// MigrationPath returns the file:// URL of the repository migrations.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	return fmt.Sprintf("file://%s/../../migrations", basepath)
}

// GetAppConfig points a config at the suite's containers. Workers and the
// API are enabled; the summarizer backend is left to the caller.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DBHost:                 s.DBHost,
		DBPort:                 s.DBPort,
		DBUser:                 "test",
		DBPass:                 "test",
		DBName:                 "trailmark_test",
		MigrationPath:          MigrationPath(),
		NSQDHost:               s.NSQDAddr,
		NSQDHTTP:               s.NSQDHTTP,
		NSQMaxAttempts:         5,
		NSQConnectAttempts:     3,
		EnrichChannel:          "enrich",
		PersistChannel:         "persist",
		EnableAPI:              true,
		EnableEnrichWorker:     true,
		EnablePersistWorker:    true,
		SummarizerProvider:     config.ProviderOpenAI,
		AIModel:                "test-model",
		OpenAIBaseURL:          "http://127.0.0.1:1",
		ServerPort:             8081,
		BootstrapRetryAttempts: 3,
		NotifyMinScroll:        0.3,
	}
}
