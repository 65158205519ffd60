package history

// SchemaSQL defines the run and heat tables. Runs are keyed by the short
// ID the store hands back from CreateRun; heats reference that ID in a
// plain field so deleting a run can cascade with one WHERE clause.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS log_dir ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS workers ON run TYPE int;
    DEFINE FIELD IF NOT EXISTS jobs_completed ON run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS jobs_failed ON run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS started_at ON run TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON run TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS run_status ON run FIELDS status;
    DEFINE INDEX IF NOT EXISTS run_started ON run FIELDS started_at;

    DEFINE TABLE IF NOT EXISTS heat SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS run ON heat TYPE string;
    DEFINE FIELD IF NOT EXISTS submission_id ON heat TYPE string;
    DEFINE FIELD IF NOT EXISTS job_id ON heat TYPE string;
    DEFINE FIELD IF NOT EXISTS classifier ON heat TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON heat TYPE string;
    DEFINE FIELD IF NOT EXISTS error ON heat TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS training_rows ON heat TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS prediction_rows ON heat TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS started_at ON heat TYPE datetime;
    DEFINE FIELD IF NOT EXISTS completed_at ON heat TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS heat_run ON heat FIELDS run;
    DEFINE INDEX IF NOT EXISTS heat_status ON heat FIELDS status;
`
