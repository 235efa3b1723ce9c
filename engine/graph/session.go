package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/astra/pkg/repo"
)

// CypherResult is the subset of a neo4j result the store reads.
type CypherResult = repo.Result

// CypherRunner runs a single Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is a session that can also run a write transaction.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions. Tests substitute an in-memory opener.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// DriverOpener opens sessions on a live driver.
type DriverOpener struct {
	Driver neo4j.DriverWithContext
}

func (o DriverOpener) OpenSession(ctx context.Context) CypherSession {
	return &driverSession{sess: o.Driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (d *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return d.sess.Run(ctx, cypher, params)
}

func (d *driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return d.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(txRunner{tx: tx})
	})
}

func (d *driverSession) Close(ctx context.Context) error { return d.sess.Close(ctx) }

type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (t txRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return t.tx.Run(ctx, cypher, params)
}
