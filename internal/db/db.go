package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

// Pool represents a connection pool to the PostgreSQL database
var Pool *pgxpool.Pool

// Initialize creates and initializes the PostgreSQL connection pool
func Initialize() {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable search_path=%s",
		viper.GetString("PostgreSQL.Host"),
		viper.GetString("PostgreSQL.Port"),
		viper.GetString("PostgreSQL.User"),
		viper.GetString("PostgreSQL.Password"),
		viper.GetString("PostgreSQL.DBName"),
		viper.GetString("PostgreSQL.Schema"),
	)

	var connectConf, err = pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("Unable to parse PostgreSQL config: %v", err)
	}

	connectConf.MaxConns = int32(viper.GetInt("PostgreSQL.PoolMaxConns"))
	connectConf.HealthCheckPeriod = 15 * time.Second
	connectConf.ConnConfig.ConnectTimeout = 5 * time.Second

	// Set timezone to PGX runtime
	if s := os.Getenv("TZ"); s != "" {
		connectConf.ConnConfig.RuntimeParams["timezone"] = s
	}

	Pool, err = pgxpool.NewWithConfig(context.Background(), connectConf)
	if err != nil {
		log.Fatalf("Unable to create PostgreSQL connection pool: %v", err)
	}

	log.Println("Connected to PostgreSQL successfully")
}

// Migrate sets up the database schema
func Migrate() {
	log.Println("Starting database migration...")

	tabsSchema := `
    CREATE TABLE IF NOT EXISTS tabs (
        id UUID PRIMARY KEY,
        name TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'open', -- 'open' or 'closed'
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        closed_at TIMESTAMPTZ
    );
    CREATE INDEX IF NOT EXISTS idx_tabs_status ON tabs(status);`
	_, err := Pool.Exec(context.Background(), tabsSchema)
	if err != nil {
		log.Fatalf("Failed to migrate tabs table: %v", err)
	}

	participantsSchema := `
    CREATE TABLE IF NOT EXISTS participants (
        id UUID PRIMARY KEY,
        tab_id UUID NOT NULL REFERENCES tabs(id) ON DELETE CASCADE,
        display_name TEXT NOT NULL,
        user_id TEXT NOT NULL,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_participants_tab_id ON participants(tab_id);
    CREATE INDEX IF NOT EXISTS idx_participants_tab_user ON participants(tab_id, user_id);`
	_, err = Pool.Exec(context.Background(), participantsSchema)
	if err != nil {
		log.Fatalf("Failed to migrate participants table: %v", err)
	}

	expensesSchema := `
    CREATE TABLE IF NOT EXISTS expenses (
        id UUID PRIMARY KEY,
        tab_id UUID NOT NULL REFERENCES tabs(id) ON DELETE CASCADE,
        payer_participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
        total_amount_cents BIGINT NOT NULL CHECK (total_amount_cents >= 0),
        description TEXT,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_expenses_tab_id ON expenses(tab_id);`
	_, err = Pool.Exec(context.Background(), expensesSchema)
	if err != nil {
		log.Fatalf("Failed to migrate expenses table: %v", err)
	}

	splitsSchema := `
    CREATE TABLE IF NOT EXISTS splits (
        expense_id UUID NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
        participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
        amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
        PRIMARY KEY (expense_id, participant_id)
    );
    CREATE INDEX IF NOT EXISTS idx_splits_participant_id ON splits(participant_id);`
	_, err = Pool.Exec(context.Background(), splitsSchema)
	if err != nil {
		log.Fatalf("Failed to migrate splits table: %v", err)
	}

	settlementsSchema := `
    CREATE TABLE IF NOT EXISTS settlements (
        id UUID PRIMARY KEY,
        tab_id UUID NOT NULL UNIQUE REFERENCES tabs(id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS settlement_transfers (
        settlement_id UUID NOT NULL REFERENCES settlements(id) ON DELETE CASCADE,
        from_participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
        to_participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
        amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
        PRIMARY KEY (settlement_id, from_participant_id, to_participant_id)
    );`
	_, err = Pool.Exec(context.Background(), settlementsSchema)
	if err != nil {
		log.Fatalf("Failed to migrate settlements tables: %v", err)
	}

	// One live acknowledgement per directed pair per tab; the composite
	// primary key is what makes the initiate upsert atomic.
	acknowledgementsSchema := `
    CREATE TABLE IF NOT EXISTS acknowledgements (
        tab_id UUID NOT NULL REFERENCES tabs(id) ON DELETE CASCADE,
        from_participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
        to_participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
        amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
        status TEXT NOT NULL DEFAULT 'PENDING',
        initiated_by_user_id TEXT NOT NULL,
        initiated_at TIMESTAMPTZ NOT NULL,
        acknowledged_by_user_id TEXT,
        acknowledged_at TIMESTAMPTZ,
        PRIMARY KEY (tab_id, from_participant_id, to_participant_id)
    );
    CREATE INDEX IF NOT EXISTS idx_acknowledgements_tab_id ON acknowledgements(tab_id);`
	_, err = Pool.Exec(context.Background(), acknowledgementsSchema)
	if err != nil {
		log.Fatalf("Failed to migrate acknowledgements table: %v", err)
	}

	userPromptPaySchema := `
	CREATE TABLE IF NOT EXISTS user_promptpay (
		user_id TEXT NOT NULL,
		promptpay_id VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id)
	);`
	_, err = Pool.Exec(context.Background(), userPromptPaySchema)
	if err != nil {
		log.Fatalf("Failed to migrate user_promptpay table: %v", err)
	}

	// Trigger function to update 'updated_at' timestamp
	triggerFunction := `
    CREATE OR REPLACE FUNCTION update_modified_column()
    RETURNS TRIGGER AS $$
    BEGIN
       NEW.updated_at = NOW();
       RETURN NEW;
    END;
    $$ language 'plpgsql';`
	_, err = Pool.Exec(context.Background(), triggerFunction)
	if err != nil {
		log.Fatalf("Failed to create/update trigger function 'update_modified_column': %v", err)
	}

	userPromptPayTrigger := `
	DROP TRIGGER IF EXISTS update_user_promptpay_modtime ON user_promptpay;
	CREATE TRIGGER update_user_promptpay_modtime
	BEFORE UPDATE ON user_promptpay
	FOR EACH ROW
	EXECUTE FUNCTION update_modified_column();`
	_, err = Pool.Exec(context.Background(), userPromptPayTrigger)
	if err != nil {
		log.Fatalf("Failed to apply trigger to user_promptpay: %v", err)
	}

	log.Println("Database migration completed successfully")
}
