package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/takutakahashi/adplatform-auth/pkg/config"
)

// testStoreContract runs the behaviour every Store must share
func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "tiktokAuthState")
		assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "tiktokAuthState", "ciphertext-1"))

		value, err := store.Get(ctx, "tiktokAuthState")
		require.NoError(t, err)
		assert.Equal(t, "ciphertext-1", value)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "tiktokAuthState", "ciphertext-2"))

		value, err := store.Get(ctx, "tiktokAuthState")
		require.NoError(t, err)
		assert.Equal(t, "ciphertext-2", value)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "adPlatformConnections", `{"tiktok":{}}`))

		value, err := store.Get(ctx, "tiktokAuthState")
		require.NoError(t, err)
		assert.Equal(t, "ciphertext-2", value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "tiktokAuthState"))

		_, err := store.Get(ctx, "tiktokAuthState")
		assert.True(t, errors.Is(err, ErrNotFound))

		// Deleting again is not an error
		assert.NoError(t, store.Delete(ctx, "tiktokAuthState"))

		value, err := store.Get(ctx, "adPlatformConnections")
		require.NoError(t, err)
		assert.Equal(t, `{"tiktok":{}}`, value)
	})

	assert.NoError(t, store.Close())
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	testStoreContract(t, store)
}

func TestFileStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "adPlatformConnections", `{"tiktok":{"status":"connected"}}`))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	value, err := reopened.Get(ctx, "adPlatformConnections")
	require.NoError(t, err)
	assert.Equal(t, `{"tiktok":{"status":"connected"}}`, value)
}

func TestFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestS3Store(t *testing.T) {
	testStoreContract(t, newS3StoreWithClient(newFakeS3(), "tokens", "adplatform-auth"))
}

func TestS3Store_Prefix(t *testing.T) {
	client := newFakeS3()
	store := newS3StoreWithClient(client, "tokens", "adplatform-auth")

	require.NoError(t, store.Set(context.Background(), "tiktokAuthState", "v"))
	_, ok := client.objects["adplatform-auth/tiktokAuthState"]
	assert.True(t, ok)
}

func TestKubernetesStore(t *testing.T) {
	testStoreContract(t, NewKubernetesStore(fake.NewSimpleClientset(), "default", "adplatform-auth-store"))
}

func TestKubernetesStore_SecretLayout(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset()
	store := NewKubernetesStore(client, "ads", "adplatform-auth-store")

	require.NoError(t, store.Set(ctx, "adPlatformConnections", "{}"))
	require.NoError(t, store.Set(ctx, "tiktokAuthState", "state"))

	secret, err := client.CoreV1().Secrets("ads").Get(ctx, "adplatform-auth-store", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "true", secret.Labels[LabelStore])
	assert.Equal(t, "{}", string(secret.Data["adPlatformConnections"]))
	assert.Equal(t, "state", string(secret.Data["tiktokAuthState"]))
}

func TestKubernetesStore_InvalidKey(t *testing.T) {
	store := NewKubernetesStore(fake.NewSimpleClientset(), "default", "adplatform-auth-store")
	err := store.Set(context.Background(), "bad/key", "v")
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore(ctx, config.StorageConfig{Type: "file", FilePath: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = NewStore(ctx, config.StorageConfig{Type: "s3"})
	assert.Error(t, err)

	_, err = NewStore(ctx, config.StorageConfig{Type: "sqlite"})
	assert.Error(t, err)
}
