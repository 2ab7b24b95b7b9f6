package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hydra.dev/pkg/hydra/internal/domain"
	domainmocks "hydra.dev/pkg/hydra/internal/domain/mocks"
	m "hydra.dev/pkg/hydra/internal/model"
)

func TestListCmd_PassesPaths(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)
	useWorkflow(t, mockWorkflow)

	cmd, _ := newTestRootCmd(t, newListCmd())

	mockWorkflow.On("List", mock.Anything, mock.MatchedBy(func(args domain.ListArgs) bool {
		return len(args.Paths) == 2 && args.Paths[0] == m.Path("./coin/...") && args.Paths[1] == m.Path("vault.yaml")
	})).Return(nil)

	cmd.SetArgs([]string{"list", "./coin/...", "vault.yaml"})
	require.NoError(t, cmd.Execute())
}

func TestListCmd_Examples(t *testing.T) {
	examples, err := filepath.Abs(filepath.Join("..", "examples"))
	require.NoError(t, err)

	cmd, out := newTestRootCmd(t, newListCmd())

	cmd.SetArgs([]string{"list", examples + string(filepath.Separator) + "..."})
	require.NoError(t, cmd.Execute())

	output := out.String()
	for _, id := range []string{"0x1::coin", "0x1::balance", "0x2::vault", "0x3::vault", "0x4::vault"} {
		assert.Contains(t, output, id)
	}

	assert.Contains(t, output, "TOTAL MODULES 5")
}

func TestNewListCmd(t *testing.T) {
	cmd := newListCmd()

	assert.Equal(t, "list [paths...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, listLongDescription, cmd.Long)
}
