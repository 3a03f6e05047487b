package cli

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Config    string `help:"Settings file (YAML)." short:"c" env:"CONTRIBUTE_CONFIG" type:"path"`
	Database  string `help:"SQLite database path, overrides the settings file." short:"d"`
	LogLevel  string `help:"Log level (debug, info, warn, error), overrides the settings file." name:"log-level"`
	Telemetry bool   `help:"Show timing telemetry for operations."`
}

type Commands struct {
	Globals

	Serve    ServeCmd    `cmd:"" help:"Start the contribution API server."`
	Migrate  MigrateCmd  `cmd:"" help:"Create or update the database tables."`
	Seed     SeedCmd     `cmd:"" help:"Create the chart of accounts from the settings file."`
	Status   StatusCmd   `cmd:"" help:"List recent contributions."`
	Complete CompleteCmd `cmd:"" help:"Complete a pending contribution."`
	Pay      PayCmd      `cmd:"" help:"Record a payment or refund against a contribution."`
	Fail     FailCmd     `cmd:"" help:"Record a failed payment for a contribution."`
	Balance  BalanceCmd  `cmd:"" help:"Show the ledger balances of a contribution."`
	Receipt  ReceiptCmd  `cmd:"" help:"Preview or send the receipt of a contribution."`
	Inspect  InspectCmd  `cmd:"" help:"Dump a contribution with its line items and transactions."`
	Delete   DeleteCmd   `cmd:"" help:"Delete a contribution and its ledger rows."`
	Config   ConfigCmd   `cmd:"" help:"Settings file utilities."`
}
