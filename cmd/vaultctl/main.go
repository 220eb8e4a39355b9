package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/gabrielantonyxaviour/jedi-vault/auth"
	"github.com/gabrielantonyxaviour/jedi-vault/cmd/flags"
	"github.com/gabrielantonyxaviour/jedi-vault/collections"
	"github.com/gabrielantonyxaviour/jedi-vault/cryptoutils"
	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
	"github.com/gabrielantonyxaviour/jedi-vault/registry"
	"github.com/gabrielantonyxaviour/jedi-vault/vault"
)

var collectionFlag = &cli.StringFlag{
	Name:     "collection",
	Required: true,
	Usage:    "collection name as configured in the cluster config",
}

var secretFieldsFlag = &cli.StringFlag{
	Name:  "secret-fields",
	Usage: "comma-separated fields to secret-share; defaults to the built-in classification of the collection",
}

var idFlag = &cli.StringFlag{
	Name:     "id",
	Required: true,
	Usage:    "record identifier",
}

var commonFlags = []cli.Flag{
	flags.ClusterConfigFlag,
	collectionFlag,
	secretFieldsFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
	flags.LogServiceFlag,
}

func main() {
	app := &cli.App{
		Name:  "vaultctl",
		Usage: "Store and retrieve secret-shared records in a vault cluster",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a record from key=value arguments",
				ArgsUsage: "field=value [field=value ...]",
				Flags:     commonFlags,
				Action:    runCreate,
			},
			{
				Name:      "read",
				Usage:     "List records, optionally filtered by key=value arguments",
				ArgsUsage: "[field=value ...]",
				Flags:     commonFlags,
				Action:    runRead,
			},
			{
				Name:   "get",
				Usage:  "Fetch one record by identifier",
				Flags:  append([]cli.Flag{idFlag}, commonFlags...),
				Action: runGet,
			},
			{
				Name:      "update",
				Usage:     "Patch the named fields of one record",
				ArgsUsage: "field=value [field=value ...]",
				Flags:     append([]cli.Flag{idFlag}, commonFlags...),
				Action:    runUpdate,
			},
			{
				Name:   "delete",
				Usage:  "Delete one record from every node",
				Flags:  append([]cli.Flag{idFlag}, commonFlags...),
				Action: runDelete,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openCollection wires the whole client stack out of the cluster config: key
// material, codec, per-node HTTP backends and the untyped collection.
func openCollection(cCtx *cli.Context) (*vault.Collection[map[string]string], error) {
	logger := flags.SetupLogger(cCtx)

	config, err := registry.LoadConfig(cCtx.String(flags.ClusterConfigFlag.Name))
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewNodeRegistry(config)
	if err != nil {
		return nil, err
	}

	signingKey, err := config.SigningKey()
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewProvider(signingKey, config.Org.Identity)
	if err != nil {
		return nil, err
	}

	clusterSecret, err := config.ClusterSecret()
	if err != nil {
		return nil, err
	}
	keys, err := cryptoutils.NewClusterKeyProvider(clusterSecret, []byte(config.Org.ClusterSalt))
	if err != nil {
		return nil, err
	}
	codec, err := cryptoutils.NewShamirCodec(keys, reg.Shares())
	if err != nil {
		return nil, err
	}

	cluster, err := vault.Connect(codec, reg.Nodes(), tokens, nil, vault.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	name := cCtx.String(collectionFlag.Name)
	schema, err := reg.SchemaFor(name)
	if err != nil {
		return nil, err
	}

	var secretFields []string
	if raw := cCtx.String(secretFieldsFlag.Name); raw != "" {
		secretFields = strings.Split(raw, ",")
	} else if fields, err := collections.SecretFields(name); err == nil {
		secretFields = fields
	}

	return vault.NewCollection[map[string]string](cluster, vault.Schema{ID: schema, SecretFields: secretFields})
}

// parseFields turns key=value arguments into a field map.
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field argument %q, expected key=value", arg)
		}
		fields[key] = value
	}
	return fields, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runCreate(cCtx *cli.Context) error {
	collection, err := openCollection(cCtx)
	if err != nil {
		return err
	}
	fields, err := parseFields(cCtx.Args().Slice())
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("create needs at least one field=value argument")
	}

	id, err := collection.Create(cCtx.Context, fields)
	if err != nil {
		return err
	}
	fmt.Println(id.String())
	return nil
}

func runRead(cCtx *cli.Context) error {
	collection, err := openCollection(cCtx)
	if err != nil {
		return err
	}
	filter, err := parseFields(cCtx.Args().Slice())
	if err != nil {
		return err
	}

	result, err := collection.Find(cCtx.Context, interfaces.Filter(filter))
	if err != nil {
		return err
	}

	type row struct {
		ID     string            `json:"id"`
		Fields map[string]string `json:"fields"`
	}
	rows := make([]row, 0, len(result.Items))
	for _, item := range result.Items {
		rows = append(rows, row{ID: item.ID.String(), Fields: item.Entity})
	}
	if err := printJSON(rows); err != nil {
		return err
	}

	for _, incomplete := range result.Incomplete {
		fmt.Fprintf(os.Stderr, "record %s is missing shares (present on node slots %v)\n",
			incomplete.ID, incomplete.NodesPresent)
	}
	for slot, nodeErr := range result.NodeFailures {
		fmt.Fprintf(os.Stderr, "node slot %d unavailable: %v\n", slot, nodeErr)
	}
	return nil
}

func runGet(cCtx *cli.Context) error {
	collection, err := openCollection(cCtx)
	if err != nil {
		return err
	}
	id, err := interfaces.ParseRecordID(cCtx.String(idFlag.Name))
	if err != nil {
		return err
	}

	entity, err := collection.FindByID(cCtx.Context, id)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("record %s: %w", id, interfaces.ErrRecordNotFound)
	}
	return printJSON(entity)
}

func runUpdate(cCtx *cli.Context) error {
	collection, err := openCollection(cCtx)
	if err != nil {
		return err
	}
	id, err := interfaces.ParseRecordID(cCtx.String(idFlag.Name))
	if err != nil {
		return err
	}
	patch, err := parseFields(cCtx.Args().Slice())
	if err != nil {
		return err
	}

	updated, err := collection.Update(cCtx.Context, id, patch)
	if err != nil {
		return err
	}
	if !updated {
		fmt.Fprintf(os.Stderr, "record %s was not known to every node\n", id)
	}
	return nil
}

func runDelete(cCtx *cli.Context) error {
	collection, err := openCollection(cCtx)
	if err != nil {
		return err
	}
	id, err := interfaces.ParseRecordID(cCtx.String(idFlag.Name))
	if err != nil {
		return err
	}

	deleted, err := collection.Delete(cCtx.Context, id)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(os.Stderr, "record was already absent")
	}
	return nil
}
