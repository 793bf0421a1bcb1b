package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fjacquet/jamfpro/internal/logging"
	"github.com/fjacquet/jamfpro/internal/models"
	"github.com/fjacquet/jamfpro/internal/utils"
	"github.com/fjacquet/jamfpro/jamf"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	envFile    string
	debug      bool
}

// load reads and validates the configuration, then sets up logging from it.
func (o *rootOptions) load() (*models.Config, error) {
	if !utils.FileExists(o.configFile) {
		return nil, fmt.Errorf("config file not found: %s", o.configFile)
	}
	cfg, err := models.LoadConfig(o.configFile, o.envFile)
	if err != nil {
		return nil, err
	}
	if err := logging.PrepareLogs(cfg.Server.LogName); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.SetDebug(o.debug)
	log.Debug("Debug mode enabled")
	return cfg, nil
}

// client loads the configuration and builds a Jamf client from it.
func (o *rootOptions) client() (*jamf.Client, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	imm, err := models.NewImmutableConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newJamfClient(imm)
}

// newJamfClient builds a client with the connection settings of cfg. extra
// options are applied after them.
func newJamfClient(cfg models.ImmutableConfig, extra ...jamf.Option) (*jamf.Client, error) {
	creds := jamf.BasicCredentials(cfg.Username(), cfg.Password())
	if cfg.UsesClientCredentials() {
		creds = jamf.ClientCredentials(cfg.ClientID(), cfg.ClientSecret())
	}

	opts := []jamf.Option{
		jamf.WithTimeout(cfg.Timeout()),
		jamf.WithInsecureSkipVerify(cfg.InsecureSkipVerify()),
		jamf.WithTokenRefreshBuffer(cfg.TokenRefreshBuffer()),
		jamf.WithRateLimit(cfg.RequestsPerMinute()),
		jamf.WithLogger(log.StandardLogger()),
	}
	return jamf.New(cfg.JamfURL(), creds, append(opts, extra...)...)
}

func family(classic bool) jamf.Family {
	if classic {
		return jamf.Classic
	}
	return jamf.Pro
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           programName,
		Short:         "Jamf Pro API client and inventory exporter",
		Long:          "jamfpro calls the Jamf Pro Classic and Pro APIs and exposes the inventory in Prometheus format",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file (required)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load JAMF_* overrides from this .env file")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug mode")
	_ = root.MarkPersistentFlagRequired("config")

	root.AddCommand(
		newGetCmd(opts),
		newListCmd(opts),
		newDeleteCmd(opts),
		newPostCmd(opts),
		newCreateClassCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var classic bool
	cmd := &cobra.Command{
		Use:   "get <endpoint>",
		Short: "GET an endpoint and print the answer; paginated collections are printed whole",
		Example: `  jamfpro -c config.yaml get api/v1/computers-inventory
  jamfpro -c config.yaml get --classic JSSResource/computers/id/1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			res, err := client.Perform(cmd.Context(), args[0], http.MethodGet, nil, family(classic))
			if err != nil {
				return err
			}
			if res.Paginated {
				return writeJSON(cmd.OutOrStdout(), res.Records)
			}
			return writeBody(cmd.OutOrStdout(), res.Body)
		},
	}
	cmd.Flags().BoolVar(&classic, "classic", false, "Endpoint belongs to the Classic API (JSSResource)")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list <endpoint>",
		Short:   "Fetch every page of a Pro API collection and print the records",
		Example: "  jamfpro -c config.yaml list api/v2/mobile-devices",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			records, err := client.PerformPaginated(cmd.Context(), args[0], jamf.Pro)
			if err != nil {
				return err
			}
			log.Debugf("Fetched %d records from %s", len(records), args[0])
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var classic bool
	cmd := &cobra.Command{
		Use:     "delete <endpoint>",
		Short:   "DELETE an endpoint",
		Example: "  jamfpro -c config.yaml delete --classic JSSResource/classes/id/7",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			res, err := client.Perform(cmd.Context(), args[0], http.MethodDelete, nil, family(classic))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (status %d)\n", args[0], res.StatusCode)
			return err
		},
	}
	cmd.Flags().BoolVar(&classic, "classic", false, "Endpoint belongs to the Classic API (JSSResource)")
	return cmd
}

func newPostCmd(opts *rootOptions) *cobra.Command {
	var classic bool
	cmd := &cobra.Command{
		Use:   "post <endpoint> <file|->",
		Short: "POST a JSON document (or XML with --classic) and print the new id",
		Example: `  jamfpro -c config.yaml post api/v1/buildings building.json
  jamfpro -c config.yaml post --classic JSSResource/classes/id/0 class.xml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := utils.ReadPayload(args[1])
			if err != nil {
				return err
			}
			var payload interface{} = data
			if !classic {
				if !json.Valid(data) {
					return fmt.Errorf("%s is not a JSON document", args[1])
				}
				payload = json.RawMessage(data)
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			id, err := client.PostData(cmd.Context(), args[0], payload, classic)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cmd.Flags().BoolVar(&classic, "classic", false, "Payload is Classic API XML")
	return cmd
}

func newCreateClassCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-class <file.yaml>",
		Short: "Create a Classic API class from a YAML description and print its id",
		Example: `  # class.yaml
  name: Algebra 1
  description: Period 3
  students: [alice, bob]
  teachers: [mr.smith]

  jamfpro -c config.yaml create-class class.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record jamf.ClassRecord
			if err := utils.ReadYAML(args[0], &record); err != nil {
				return err
			}
			// Fail on a bad record before any request is sent.
			if _, err := jamf.EncodeClassRecord(record); err != nil {
				return err
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			id, err := client.ClassicCreateClass(cmd.Context(), record)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// writeBody indents JSON bodies and prints anything else as received.
func writeBody(w io.Writer, body []byte) error {
	if json.Valid(body) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	_, err := fmt.Fprintln(w, string(body))
	return err
}
