package violation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

func TestDefaultHandler_RaisesSEC001(t *testing.T) {
	err := DefaultHandler{}.OnViolation(vm.NewAssemblyID("Untrusted"), ident.MemberID{Token: 7})
	rep, ok := errors.AsReport(err)
	require.True(t, ok)
	require.Equal(t, errors.SEC001, rep.Code)
}

func TestLogAndContinueHandler_WritesAndReturnsNil(t *testing.T) {
	var buf bytes.Buffer
	h := &LogAndContinueHandler{Out: &buf}
	err := h.OnViolation(vm.NewAssemblyID("Untrusted"), ident.MemberID{Token: 7})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "cas-violation")
}

func TestRecordingHandler_AccumulatesAndFlushes(t *testing.T) {
	h := &RecordingHandler{}
	require.NoError(t, h.OnViolation(vm.NewAssemblyID("A"), ident.MemberID{Token: 1}))
	require.NoError(t, h.OnViolation(vm.NewAssemblyID("A"), ident.MemberID{Token: 2}))
	require.Len(t, h.Violations(), 2)

	err := h.Flush()
	require.Error(t, err)
	require.Empty(t, h.Violations(), "Flush clears the recording")
	require.NoError(t, h.Flush(), "a second Flush with nothing recorded succeeds")
}
