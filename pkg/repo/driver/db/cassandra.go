package db

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"passbridge/config"
)

// NewCassandraSession connects to the cluster and bootstraps the keyspace
// and table schema. All DDL is IF NOT EXISTS, so restarts against an
// already-provisioned cluster are no-ops.
func NewCassandraSession(cfg config.DB) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Host)
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	cluster.Consistency = gocql.Quorum
	cluster.ConnectTimeout = 10 * time.Second

	// the keyspace cannot be set before it exists, so bootstrap runs on a
	// keyspace-less session first
	bootstrap, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connecting to cassandra: %w", err)
	}

	err = bootstrap.Query(
		`CREATE KEYSPACE IF NOT EXISTS ` + cfg.Keyspace +
			` WITH REPLICATION = {'class' : 'SimpleStrategy', 'replication_factor' : 1}`,
	).Exec()
	bootstrap.Close()
	if err != nil {
		return nil, fmt.Errorf("creating keyspace %s: %w", cfg.Keyspace, err)
	}

	cluster.Keyspace = cfg.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connecting to keyspace %s: %w", cfg.Keyspace, err)
	}

	if err = createTables(session, cfg.Keyspace); err != nil {
		session.Close()
		return nil, err
	}

	return session, nil
}

func createTables(session *gocql.Session, keyspace string) error {
	for _, schema := range dbTableSchemas {
		stmt := fmt.Sprintf(schema, keyspace)
		if err := session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("creating table with %q: %w", stmt, err)
		}
	}

	return nil
}
