package reminder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garasiku/internal/notifications/digest"
	"garasiku/internal/types"
)

func TestParseRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.id", "b@x.id"}, ParseRecipients(" a@x.id, ,b@x.id ,"))
	assert.NotNil(t, ParseRecipients(""))
	assert.Empty(t, ParseRecipients(" , "))
}

func TestResolveGroups_Split(t *testing.T) {
	groups, err := ResolveGroups(RecipientConfig{
		Service:        "bengkel@garasiku.id",
		Admin:          "admin@garasiku.id, finance@garasiku.id",
		ServiceSubject: "Servis",
		AdminSubject:   "Administrasi",
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, GroupService, groups[0].Name)
	assert.Equal(t, digest.LayoutMaintenance, groups[0].Layout)
	assert.Equal(t, "Servis", groups[0].Subject)
	assert.Equal(t, []string{"bengkel@garasiku.id"}, groups[0].Addresses)

	assert.Equal(t, GroupAdmin, groups[1].Name)
	assert.Equal(t, digest.LayoutAdministrative, groups[1].Layout)
	assert.Len(t, groups[1].Addresses, 2)
}

func TestResolveGroups_SkipsEmptyGroup(t *testing.T) {
	groups, err := ResolveGroups(RecipientConfig{Admin: "admin@garasiku.id"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, GroupAdmin, groups[0].Name)
}

func TestResolveGroups_AutoMode(t *testing.T) {
	t.Run("combined only picks combined", func(t *testing.T) {
		groups, err := ResolveGroups(RecipientConfig{Mode: ModeAuto, Combined: "owner@garasiku.id"})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, GroupCombined, groups[0].Name)
		assert.Equal(t, digest.LayoutCombined, groups[0].Layout)
	})

	t.Run("split lists win over combined", func(t *testing.T) {
		groups, err := ResolveGroups(RecipientConfig{Service: "bengkel@garasiku.id", Combined: "owner@garasiku.id"})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, GroupService, groups[0].Name)
	})
}

func TestResolveGroups_ExplicitModes(t *testing.T) {
	groups, err := ResolveGroups(RecipientConfig{
		Mode:     ModeCombined,
		Service:  "bengkel@garasiku.id",
		Combined: "owner@garasiku.id",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, GroupCombined, groups[0].Name)

	_, err = ResolveGroups(RecipientConfig{Mode: ModeSplit, Combined: "owner@garasiku.id"})
	assertAppErrorCode(t, err, types.ErrCodeReminderNoRecipients)

	_, err = ResolveGroups(RecipientConfig{Mode: "weekly", Service: "bengkel@garasiku.id"})
	require.Error(t, err)
}

func TestResolveGroups_NoRecipients(t *testing.T) {
	_, err := ResolveGroups(RecipientConfig{Service: " ", Admin: ","})
	assertAppErrorCode(t, err, types.ErrCodeReminderNoRecipients)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "No recipient emails defined", appErr.Message)
}

func TestResolveGroups_InvalidAddress(t *testing.T) {
	_, err := ResolveGroups(RecipientConfig{Service: "bengkel@garasiku.id, not-an-email"})
	assertAppErrorCode(t, err, types.ErrCodeReminderInvalidRecipient)
	require.Error(t, errors.Unwrap(err))
	assert.Contains(t, errors.Unwrap(err).Error(), "not-an-email")
}

func assertAppErrorCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected *types.AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
