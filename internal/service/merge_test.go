package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/mirror-importer/internal/model"
)

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }

func eid(v int64) *model.EntityID {
	id := model.EntityID(v)
	return &id
}

// fullRecord carries every optional field.
func fullRecord(id model.EntityID, deleted bool) model.AccountInfo {
	return model.AccountInfo{
		AccountID:       id,
		Key:             []byte{0x12, 0x20, 0x01},
		AutoRenewPeriod: i64(7776000),
		ExpirationTime:  &model.Timestamp{Seconds: 1600000000, Nanos: 1},
		Deleted:         deleted,
		Memo:            str("archived memo"),
		ProxyAccountID:  eid(3),
	}
}

func TestMerge_NewRowFillsEverything(t *testing.T) {
	t.Parallel()

	e := model.EntityID(1001).ToEntity()
	out := Merge(e, false, fullRecord(1001, true))

	require.Equal(t, Updated, out)
	require.Equal(t, model.EntityID(1001), e.ID)
	require.Equal(t, []byte{0x12, 0x20, 0x01}, e.Key)
	require.Equal(t, int64(7776000), *e.AutoRenewPeriod)
	require.Equal(t, int64(1600000000000000001), *e.ExpirationTimestamp)
	require.True(t, e.Deleted)
	require.Equal(t, "archived memo", e.Memo)
	require.Equal(t, model.EntityID(3), *e.ProxyAccountID)
}

func TestMerge_NewRowWithoutFieldsStillChanged(t *testing.T) {
	t.Parallel()

	e := model.EntityID(1001).ToEntity()
	require.Equal(t, Updated, Merge(e, false, model.AccountInfo{AccountID: 1001}))
	require.Nil(t, e.Key)
}

func TestMerge_SkipGuard(t *testing.T) {
	t.Parallel()

	records := []model.AccountInfo{
		fullRecord(1002, true),
		fullRecord(1002, false),
		{AccountID: 1002},
		{AccountID: 1002, Deleted: true, Memo: str("")},
	}
	for _, rec := range records {
		e := model.EntityID(1002).ToEntity()
		e.Key = []byte{0xff}
		before := *e

		require.Equal(t, SkippedNewer, Merge(e, true, rec))
		require.Equal(t, before, *e, "skipped row must not be modified")
	}
}

func TestMerge_EmptyKeyDoesNotTriggerSkip(t *testing.T) {
	t.Parallel()

	e := model.EntityID(1003).ToEntity()
	e.Key = []byte{}
	e.Memo = "kept"

	require.Equal(t, Updated, Merge(e, true, model.AccountInfo{AccountID: 1003, Key: []byte{1}}))
	require.Equal(t, []byte{1}, e.Key)
}

func TestMerge_FillOnlyNeverOverwrites(t *testing.T) {
	t.Parallel()

	e := model.EntityID(1004).ToEntity()
	e.AutoRenewPeriod = i64(1)
	e.ExpirationTimestamp = i64(2)
	e.Memo = "current"
	e.ProxyAccountID = eid(4)
	before := *e

	out := Merge(e, true, fullRecord(1004, false))

	// only the key was missing
	require.Equal(t, Updated, out)
	require.Equal(t, before.AutoRenewPeriod, e.AutoRenewPeriod)
	require.Equal(t, before.ExpirationTimestamp, e.ExpirationTimestamp)
	require.Equal(t, "current", e.Memo)
	require.Equal(t, model.EntityID(4), *e.ProxyAccountID)
	require.Equal(t, []byte{0x12, 0x20, 0x01}, e.Key)
}

func TestMerge_NothingToFill(t *testing.T) {
	t.Parallel()

	e := model.EntityID(1005).ToEntity()
	e.AutoRenewPeriod = i64(1)
	e.Memo = "current"

	require.Equal(t, Unchanged, Merge(e, true, model.AccountInfo{AccountID: 1005, AutoRenewPeriod: i64(9), Memo: str("x")}))
	require.Equal(t, int64(1), *e.AutoRenewPeriod)
}

func TestMerge_DeletionMonotonic(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		dst, src, want bool
		outcome        MergeOutcome
	}{
		{dst: false, src: false, want: false, outcome: Unchanged},
		{dst: false, src: true, want: true, outcome: Updated},
		{dst: true, src: false, want: true, outcome: Unchanged},
		{dst: true, src: true, want: true, outcome: Unchanged},
	} {
		e := model.EntityID(1006).ToEntity()
		e.Deleted = tc.dst
		e.Memo = "set"

		out := Merge(e, true, model.AccountInfo{AccountID: 1006, Deleted: tc.src})
		require.Equal(t, tc.want, e.Deleted, "dst=%v src=%v", tc.dst, tc.src)
		require.Equal(t, tc.outcome, out, "dst=%v src=%v", tc.dst, tc.src)
	}
}

func TestMerge_EmptyArchivalMemoCountsAsUpdate(t *testing.T) {
	t.Parallel()

	e := model.EntityID(1007).ToEntity()
	require.Equal(t, Updated, Merge(e, true, model.AccountInfo{AccountID: 1007, Memo: str("")}))
	require.Empty(t, e.Memo)

	// absent memo leaves an empty row unchanged
	e = model.EntityID(1007).ToEntity()
	require.Equal(t, Unchanged, Merge(e, true, model.AccountInfo{AccountID: 1007}))
}

func TestMerge_ZeroProxyIsNotAReference(t *testing.T) {
	t.Parallel()

	e := model.EntityID(1008).ToEntity()
	e.Memo = "set"
	require.Equal(t, Unchanged, Merge(e, true, model.AccountInfo{AccountID: 1008, ProxyAccountID: eid(0)}))
	require.Nil(t, e.ProxyAccountID)
}

func TestMerge_DoesNotAliasRecordKey(t *testing.T) {
	t.Parallel()

	rec := model.AccountInfo{AccountID: 1009, Key: []byte{1, 2, 3}}
	e := model.EntityID(1009).ToEntity()
	Merge(e, false, rec)
	rec.Key[0] = 9
	require.Equal(t, []byte{1, 2, 3}, e.Key)
}

func TestMergeOutcome_String(t *testing.T) {
	require.Equal(t, "updated", Updated.String())
	require.Equal(t, "skipped", SkippedNewer.String())
	require.Equal(t, "unchanged", Unchanged.String())
}
