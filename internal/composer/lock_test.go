package composer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/wp-translations/internal/core"
)

const lockDocument = `{
	"_readme": ["This file locks the dependencies of your project"],
	"content-hash": "abc",
	"packages": [
		{"name": "johnpbloch/wordpress-core", "version": "5.4.2", "type": "wordpress-core"},
		{"name": "inpsyde/google-tag-manager", "version": "1.2.0", "type": "wordpress-plugin"},
		{"name": "psr/log", "version": "1.1.3"},
		{"version": "0.0.1", "type": "library"}
	],
	"packages-dev": [
		{"name": "wpackagist-theme/twentytwenty", "version": "dev-master", "type": "wordpress-theme"}
	]
}`

func TestParseLock(t *testing.T) {
	ids, err := ParseLock([]byte(lockDocument))
	require.NoError(t, err)

	assert.Equal(t, []core.Identity{
		core.NewIdentity("johnpbloch/wordpress-core", "wordpress-core", "5.4.2"),
		core.NewIdentity("inpsyde/google-tag-manager", "wordpress-plugin", "1.2.0"),
		core.NewIdentity("psr/log", "library", "1.1.3"),
		core.NewIdentity("wpackagist-theme/twentytwenty", "wordpress-theme", "dev-master"),
	}, ids)
}

func TestParseLockInvalid(t *testing.T) {
	_, err := ParseLock([]byte("{not json"))
	assert.Error(t, err)
}

func TestReadProjectLock(t *testing.T) {
	root := t.TempDir()
	_, err := ReadProjectLock(root)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, LockFileName), []byte(lockDocument), 0o644))
	ids, err := ReadProjectLock(root)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}
