package profileview

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/shared"
)

func fkErr(constraint string) error {
	return &pgconn.PgError{Code: db.CodeForeignKeyViolation, ConstraintName: constraint}
}

func TestInsertErrDistinguishesForeignKeys(t *testing.T) {
	interestID := int64(3)
	req := Request{ItemID: 7, OwnerID: 1, RequesterID: 2, InterestID: &interestID}

	require.ErrorIs(t, insertErr(fkErr(fkItem), req), ErrItemNotFound)

	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"interest", fkErr(fkInterest), shared.ReasonInterest},
		{"chat message", fkErr(fkChatMessage), shared.ReasonChatMessage},
		{"owner", fkErr(fkOwner), shared.ReasonUser},
		{"requester", fkErr(fkRequester), shared.ReasonUser},
		{"unnamed", fkErr(""), shared.ReasonRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := insertErr(tc.err, req)
			require.ErrorIs(t, err, shared.ErrNotFound)
			require.NotErrorIs(t, err, ErrItemNotFound)
			require.Equal(t, tc.reason, shared.ReasonOf(err))
		})
	}

	dup := insertErr(&pgconn.PgError{Code: db.CodeUniqueViolation, ConstraintName: "profile_view_requests_open_key"}, req)
	require.ErrorIs(t, dup, shared.ErrConflict)
	require.Equal(t, shared.ReasonDuplicateRequest, shared.ReasonOf(dup))

	plain := errors.New("connection reset")
	require.Same(t, plain, insertErr(plain, req))
}

func TestMapErrKeepsInsertReason(t *testing.T) {
	err := mapErr("profileview: insert", 7, insertErr(fkErr(fkChatMessage), Request{ItemID: 7}))
	require.Equal(t, shared.ReasonChatMessage, shared.ReasonOf(err))

	err = mapErr("profileview: insert", 7, insertErr(fkErr(fkItem), Request{ItemID: 7}))
	require.Equal(t, shared.ReasonItem, shared.ReasonOf(err))
}
