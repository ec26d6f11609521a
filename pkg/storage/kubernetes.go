package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"

	"github.com/takutakahashi/adplatform-auth/pkg/config"
)

// LabelStore marks Secrets managed by KubernetesStore
const LabelStore = "adplatform-auth/store"

var secretKeyPattern = regexp.MustCompile(`^[-._a-zA-Z0-9]+$`)

// KubernetesStore keeps every key as one data entry of a single Secret
type KubernetesStore struct {
	client     kubernetes.Interface
	namespace  string
	secretName string
}

// NewKubernetesStore creates a store backed by the Secret namespace/secretName
func NewKubernetesStore(client kubernetes.Interface, namespace, secretName string) *KubernetesStore {
	return &KubernetesStore{
		client:     client,
		namespace:  namespace,
		secretName: secretName,
	}
}

// NewKubernetesStoreFromConfig builds a clientset from kubeconfig, $KUBECONFIG or
// the in-cluster service account, in that order
func NewKubernetesStoreFromConfig(cfg config.KubernetesConfig) (*KubernetesStore, error) {
	var restCfg *rest.Config
	var err error

	if cfg.Kubeconfig != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	} else if kubeconfig := os.Getenv("KUBECONFIG"); kubeconfig != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		restCfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	log.Printf("[STORAGE] Kubernetes storage initialized: namespace=%s, secret=%s", cfg.Namespace, cfg.SecretName)
	return NewKubernetesStore(clientset, cfg.Namespace, cfg.SecretName), nil
}

// Client returns the clientset the store uses
func (k *KubernetesStore) Client() kubernetes.Interface {
	return k.client
}

// Namespace returns the namespace of the backing Secret
func (k *KubernetesStore) Namespace() string {
	return k.namespace
}

// Get reads key from the Secret
func (k *KubernetesStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := k.client.CoreV1().Secrets(k.namespace).Get(ctx, k.secretName, metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get secret %s: %w", k.secretName, err)
	}

	value, ok := secret.Data[key]
	if !ok {
		return "", ErrNotFound
	}
	return string(value), nil
}

// Set writes key into the Secret, creating the Secret on first use
func (k *KubernetesStore) Set(ctx context.Context, key, value string) error {
	if !secretKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid key for kubernetes storage: %q", key)
	}

	secrets := k.client.CoreV1().Secrets(k.namespace)

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		secret, err := secrets.Get(ctx, k.secretName, metav1.GetOptions{})
		if err != nil {
			if !errors.IsNotFound(err) {
				return fmt.Errorf("failed to get secret %s: %w", k.secretName, err)
			}

			secret = &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      k.secretName,
					Namespace: k.namespace,
					Labels: map[string]string{
						LabelStore: "true",
					},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{key: []byte(value)},
			}
			_, err = secrets.Create(ctx, secret, metav1.CreateOptions{})
			if errors.IsAlreadyExists(err) {
				// Lost the creation race; retry as an update
				return errors.NewConflict(corev1.Resource("secrets"), k.secretName, err)
			}
			if err != nil {
				return fmt.Errorf("failed to create secret %s: %w", k.secretName, err)
			}
			return nil
		}

		if secret.Data == nil {
			secret.Data = map[string][]byte{}
		}
		secret.Data[key] = []byte(value)
		_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
		return err
	})
}

// Delete removes key from the Secret
func (k *KubernetesStore) Delete(ctx context.Context, key string) error {
	secrets := k.client.CoreV1().Secrets(k.namespace)

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		secret, err := secrets.Get(ctx, k.secretName, metav1.GetOptions{})
		if err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to get secret %s: %w", k.secretName, err)
		}

		if _, ok := secret.Data[key]; !ok {
			return nil
		}
		delete(secret.Data, key)
		_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
		return err
	})
}

// Close is a no-op for kubernetes storage
func (k *KubernetesStore) Close() error {
	return nil
}

var _ Store = (*KubernetesStore)(nil)
