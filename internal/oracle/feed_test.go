package oracle

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/fundlabs-io/vault-engine/internal/config"
	"github.com/fundlabs-io/vault-engine/internal/events"
	"github.com/fundlabs-io/vault-engine/internal/registry"
	"github.com/fundlabs-io/vault-engine/internal/types"
	"github.com/fundlabs-io/vault-engine/testutil"
)

type fakeRoles struct {
	reporters map[string]bool
}

func (r *fakeRoles) HasRole(account string, role registry.Role) bool {
	return role == registry.RoleReporter && r.reporters[account]
}

func newTestFeed(t *testing.T) (*Feed, *events.MemorySink) {
	t.Helper()
	sink := events.NewMemorySink()
	feed := NewFeed(
		testutil.NewMemStore("usd-token"),
		&fakeRoles{reporters: map[string]bool{"reporter": true}},
		sink,
		// 10%
		config.OracleConfig{MaxRampBps: 1000},
	)
	return feed, sink
}

func TestFirstReportSeedsFeed(t *testing.T) {
	ctx := context.Background()
	feed, sink := newTestFeed(t)
	now := time.Now().UTC()

	// the first report has no prior snapshot to ramp against
	err := feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("42.5"), now)
	require.Nil(t, err)

	price, reportedAt, err := feed.Latest(ctx)
	require.Nil(t, err)
	require.Equal(t, math.LegacyMustNewDecFromStr("42.5"), price)
	require.Equal(t, now, reportedAt)

	emitted := sink.Events()
	require.Len(t, emitted, 1)
	require.Equal(t, types.EventPriceUpdate, emitted[0].Kind)
}

func TestReportRequiresReporterRole(t *testing.T) {
	ctx := context.Background()
	feed, _ := newTestFeed(t)

	err := feed.Report(ctx, "mallory", math.LegacyOneDec(), time.Now().UTC())
	require.True(t, types.HasErrorCode(err, types.Unauthorized))
}

func TestReportRejectsNonPositivePrice(t *testing.T) {
	ctx := context.Background()
	feed, _ := newTestFeed(t)

	err := feed.Report(ctx, "reporter", math.LegacyZeroDec(), time.Now().UTC())
	require.True(t, types.HasErrorCode(err, types.ZeroAmount))

	err = feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("-1"), time.Now().UTC())
	require.True(t, types.HasErrorCode(err, types.ZeroAmount))
}

func TestReportEnforcesRamp(t *testing.T) {
	ctx := context.Background()
	feed, _ := newTestFeed(t)
	now := time.Now().UTC()

	require.Nil(t, feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("100"), now))

	// exactly at the 10% bound passes
	err := feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("110"), now.Add(time.Minute))
	require.Nil(t, err)

	// beyond the bound, in either direction, fails
	err = feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("130"), now.Add(2*time.Minute))
	require.True(t, types.HasErrorCode(err, types.RampExceeded))

	err = feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("90"), now.Add(2*time.Minute))
	require.True(t, types.HasErrorCode(err, types.RampExceeded))

	// a rejected report leaves the snapshot untouched
	price, _, lerr := feed.Latest(ctx)
	require.Nil(t, lerr)
	require.Equal(t, math.LegacyMustNewDecFromStr("110"), price)
}

func TestReportTimestampMustAdvance(t *testing.T) {
	ctx := context.Background()
	feed, _ := newTestFeed(t)
	now := time.Now().UTC()

	require.Nil(t, feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("100"), now))

	err := feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("101"), now)
	require.True(t, types.HasErrorCode(err, types.StaleTimestamp))

	err = feed.Report(ctx, "reporter", math.LegacyMustNewDecFromStr("101"), now.Add(-time.Second))
	require.True(t, types.HasErrorCode(err, types.StaleTimestamp))
}

func TestLatestWithoutReport(t *testing.T) {
	ctx := context.Background()
	feed, _ := newTestFeed(t)

	_, _, err := feed.Latest(ctx)
	require.True(t, types.HasErrorCode(err, types.WrongState))
}
