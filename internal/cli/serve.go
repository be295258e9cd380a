package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/evidenceledger/eseal/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the seal registry and verification service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Admin password from the command line (priority) or the environment
			adminPassword := flagOrEnv(cmd, "admin-password", "ESEAL_ADMIN_PASSWORD")
			if adminPassword == "" {
				return errors.New("admin password required, set ESEAL_ADMIN_PASSWORD environment variable")
			}

			templateDebug, _ := cmd.Flags().GetBool("template-debug")
			cfg := server.Config{
				Port:              flagOrEnv(cmd, "port", "ESEAL_PORT"),
				URL:               flagOrEnv(cmd, "url", "ESEAL_URL"),
				DatabasePath:      flagOrEnv(cmd, "db", "ESEAL_DB"),
				CredentialsDir:    flagOrEnv(cmd, "credentials-dir", "ESEAL_CREDENTIALS_DIR"),
				KeystorePassword:  flagOrEnv(cmd, "keystore-password", "ESEAL_KEYSTORE_PASSWORD"),
				DefaultCredential: flagOrEnv(cmd, "default-credential", "ESEAL_DEFAULT_CREDENTIAL"),
				VendorID:          flagOrEnv(cmd, "vendor", "ESEAL_VENDOR_ID"),
				TemplateDebug:     templateDebug,
			}

			srv, err := server.New(adminPassword, cfg)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("admin-password", "", "admin password for the registry endpoints (env ESEAL_ADMIN_PASSWORD)")
	f.String("port", "8090", "listen port (env ESEAL_PORT)")
	f.String("url", "", "public URL of the service, used as report issuer (env ESEAL_URL)")
	f.String("db", "", "SQLite database path (env ESEAL_DB)")
	f.String("credentials-dir", "", "directory of PEM credential bundles and PKCS#12 keystores (env ESEAL_CREDENTIALS_DIR)")
	f.String("keystore-password", "", "password of the PKCS#12 keystores (env ESEAL_KEYSTORE_PASSWORD)")
	f.String("default-credential", "", "credential used when a request names none (env ESEAL_DEFAULT_CREDENTIAL)")
	f.String("vendor", "eseal", "vendor identifier written in seal headers (env ESEAL_VENDOR_ID)")
	f.Bool("template-debug", false, "reload templates from internal/server/views on every request")
	return cmd
}
