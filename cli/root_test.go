package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Run("Should expose the serve and migrate commands", func(t *testing.T) {
		root := RootCmd()
		require.NotNil(t, root)
		assert.Equal(t, "dispatch", root.Use)
		names := make([]string, 0, len(root.Commands()))
		for _, cmd := range root.Commands() {
			names = append(names, cmd.Name())
		}
		assert.Contains(t, names, "serve")
		assert.Contains(t, names, "migrate")
	})
}
