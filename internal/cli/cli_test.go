package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjfoc/gmsm/pkcs12"
	smx509 "github.com/tjfoc/gmsm/x509"

	"github.com/evidenceledger/eseal/internal/credentials"
	"github.com/evidenceledger/eseal/internal/models"
	"github.com/evidenceledger/eseal/internal/sealer"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := New()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeImage(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := 0; i < 40; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func TestKeygenBuildVerifyInspect(t *testing.T) {
	for _, keyType := range []string{"sm2", "ecdsa-p256"} {
		t.Run(keyType, func(t *testing.T) {
			dir := t.TempDir()
			cred := filepath.Join(dir, "signer.pem")
			img := filepath.Join(dir, "stamp.png")
			sealPath := filepath.Join(dir, "seal.esl")
			imgBytes := writeImage(t, img)

			out, err := run(t, "keygen", "--type", keyType, "--cn", "Seal Signer",
				"--org", "Test Org", "--org-id", "VATES-B12345678", "--out", cred)
			require.NoError(t, err, out)
			assert.Contains(t, out, cred)

			out, err = run(t, "build", "--credential", cred, "--name", "Test Org",
				"--image", img, "--id", "E1", "--out", sealPath)
			require.NoError(t, err, out)
			assert.Contains(t, out, "E1")

			out, err = run(t, "verify", sealPath)
			require.NoError(t, err, out)
			assert.Contains(t, out, "Valid")
			assert.Contains(t, out, "Test Org")

			out, err = run(t, "verify", "--at", "2000-01-01T00:00:00Z", sealPath)
			require.ErrorIs(t, err, ErrSealNotValid)
			assert.Contains(t, out, "NotYetValid")
			assert.Contains(t, out, "signer certificate not valid")

			out, err = run(t, "verify", "--json", sealPath)
			require.NoError(t, err, out)
			var resp models.VerificationResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, sealer.Valid, resp.Status)
			require.NotNil(t, resp.Signer)
			assert.Equal(t, "VATES-B12345678", resp.Signer.OrganizationIdentifier)

			extracted := filepath.Join(dir, "extracted.png")
			out, err = run(t, "inspect", "--image-out", extracted, sealPath)
			require.NoError(t, err, out)
			assert.Contains(t, out, "E1")
			assert.Contains(t, out, "organization")
			assert.Contains(t, out, keyType)
			got, err := os.ReadFile(extracted)
			require.NoError(t, err)
			assert.Equal(t, imgBytes, got)
		})
	}
}

func TestVerifyTampered(t *testing.T) {
	dir := t.TempDir()
	cred := filepath.Join(dir, "signer.pem")
	img := filepath.Join(dir, "stamp.png")
	sealPath := filepath.Join(dir, "seal.esl")
	imgBytes := writeImage(t, img)

	_, err := run(t, "keygen", "--out", cred)
	require.NoError(t, err)
	_, err = run(t, "build", "--credential", cred, "--name", "Test Org", "--image", img, "--out", sealPath)
	require.NoError(t, err)

	data, err := os.ReadFile(sealPath)
	require.NoError(t, err)
	at := bytes.Index(data, imgBytes)
	require.Positive(t, at)
	data[at+len(imgBytes)/2] ^= 0x01
	require.NoError(t, os.WriteFile(sealPath, data, 0o644))

	out, err := run(t, "verify", sealPath)
	require.ErrorIs(t, err, ErrSealNotValid)
	assert.Contains(t, out, "SignatureMismatch")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "stamp.png")
	writeImage(t, img)

	tests := []struct {
		name string
		args []string
	}{
		{"build without credential", []string{"build", "--name", "x", "--image", img, "--out", filepath.Join(dir, "a.esl")}},
		{"build with credential and key", []string{"build", "--credential", img, "--key", img, "--name", "x", "--image", img, "--out", filepath.Join(dir, "a.esl")}},
		{"build with missing credential file", []string{"build", "--credential", filepath.Join(dir, "none.pem"), "--name", "x", "--image", img, "--out", filepath.Join(dir, "a.esl")}},
		{"keygen unknown type", []string{"keygen", "--type", "rsa", "--out", filepath.Join(dir, "k.pem")}},
		{"verify missing file", []string{"verify", filepath.Join(dir, "none.esl")}},
		{"inspect garbage", []string{"inspect", img}},
		{"bad log level", []string{"--log-level", "loud", "verify", img}},
		{"serve without password", []string{"serve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ESEAL_ADMIN_PASSWORD", "")
			t.Setenv("ESEAL_PRIVATE_KEY_PEM", "")
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestBuildCredentialSources(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "stamp.png")
	writeImage(t, img)

	bundlePath := filepath.Join(dir, "signer.pem")
	_, err := run(t, "keygen", "--type", "sm2", "--cn", "Seal Signer", "--out", bundlePath)
	require.NoError(t, err)
	bundle, err := os.ReadFile(bundlePath)
	require.NoError(t, err)

	key, err := credentials.ParsePrivateKeyPEM(bundle)
	require.NoError(t, err)
	chain, err := credentials.ParseCertificateChainPEM(bundle)
	require.NoError(t, err)
	cert, err := smx509.ParseCertificate(chain[0].Raw)
	require.NoError(t, err)
	pfx, err := pkcs12.Encode(key, cert, nil, "changeit")
	require.NoError(t, err)
	keystore := filepath.Join(dir, "signer.p12")
	require.NoError(t, os.WriteFile(keystore, pfx, 0o600))

	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"key file", []string{"--key", bundlePath}, nil},
		{"key and chain files", []string{"--key", bundlePath, "--chain", bundlePath}, nil},
		{"inline pem", nil, map[string]string{"ESEAL_PRIVATE_KEY_PEM": string(bundle)}},
		{"keystore", []string{"--credential", keystore, "--keystore-password", "changeit"}, nil},
		{"keystore password from env", []string{"--credential", keystore}, map[string]string{"ESEAL_KEYSTORE_PASSWORD": "changeit"}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			sealPath := filepath.Join(dir, fmt.Sprintf("seal%d.esl", i))
			args := append([]string{"build", "--name", "Test Org", "--image", img, "--out", sealPath}, tt.args...)
			out, err := run(t, args...)
			require.NoError(t, err, out)

			out, err = run(t, "verify", sealPath)
			require.NoError(t, err, out)
			assert.Contains(t, out, "Seal Signer")
		})
	}

	_, err = run(t, "build", "--credential", keystore, "--keystore-password", "wrong",
		"--name", "Test Org", "--image", img, "--out", filepath.Join(dir, "x.esl"))
	assert.Error(t, err)
}

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv("ESEAL_LOG_LEVEL", "nonsense")
	_, err := run(t, "verify", "missing.esl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
