package repository

import "context"

// TxRepos bundles repositories bound to one open transaction. Callers must
// not retain them past the enclosing unit of work.
type TxRepos struct {
	Codes    CodeRepository
	Scans    ScanRepository
	Entities EntityRepository
}

// TxManager runs a unit of work inside one database transaction. The
// transaction handle is explicit in the repositories handed to fn; there is
// no ambient global connection, so concurrent callers cannot cross-contaminate
// transactions. Cancelling ctx aborts the transaction and rolls it back.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos *TxRepos) error) error
}
