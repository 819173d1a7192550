package main

import (
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// dbKeys are the properties a mysql or dbsummary task may override
// through attributes of the same name.
var dbKeys = []string{
	"db_host", "db_username", "db_password", "db_name", "db_port", "db_socket", "path_mysql",
	"dest_db_host", "dest_db_username", "dest_db_password", "dest_db_name", "dest_db_port", "dest_db_socket",
	"dest_file", "sp_user",
}

func applyDBAttrs(rc *RunContext, attrs Attrs) {
	for _, key := range dbKeys {
		if value := attrs.Get(key); value != "" {
			rc.Props.Set(key, rc.Expand(value))
		}
	}
}

// mysqlDSN builds the driver DSN from the db_* properties. A socket wins
// over host and port.
func mysqlDSN(props *PropertyStore) string {
	cfg := mysql.NewConfig()
	cfg.User = props.Get("db_username")
	cfg.Passwd = props.Get("db_password")
	cfg.DBName = props.Get("db_name")
	cfg.MultiStatements = true
	if socket := props.Get("db_socket"); socket != "" {
		cfg.Net = "unix"
		cfg.Addr = socket
	} else {
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(props.Get("db_host"), firstNonEmpty(props.Get("db_port"), "3306"))
	}
	return cfg.FormatDSN()
}

// dbConnection returns the run's cached connection, reopening it when the
// connection properties changed. Session state such as profiling and
// user variables needs a single connection.
func (rc *RunContext) dbConnection(ctx context.Context) (*sql.Conn, error) {
	dsn := mysqlDSN(rc.Props)
	if rc.dbConn != nil && rc.dbDSN == dsn {
		return rc.dbConn, nil
	}
	if err := rc.Close(); err != nil {
		rc.Logger.Debug("closing previous connection", "error", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql connect %s@%s: %w", rc.Props.Get("db_username"), rc.Props.Get("db_host"), err)
	}
	rc.db, rc.dbConn, rc.dbDSN = db, conn, dsn
	return conn, nil
}

// queryRows runs query and returns every row keyed by column name along
// with the column order. NULL reads as "NULL".
func queryRows(ctx context.Context, conn *sql.Conn, query string) ([]map[string]string, []string, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out []map[string]string
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]string, len(cols))
		for i, col := range cols {
			row[col] = "NULL"
			if values[i].Valid {
				row[col] = values[i].String
			}
		}
		out = append(out, row)
	}
	return out, cols, rows.Err()
}

// mysqlClient returns the command line prefix for the mysql client tool
// bin (mysql or mysqldump).
func mysqlClient(props *PropertyStore, bin string) string {
	var b strings.Builder
	b.WriteString(filepath.Clean(filepath.Join(props.Get("path_mysql"), bin)))
	b.WriteString(" -h " + props.Get("db_host"))
	b.WriteString(" -u " + props.Get("db_username"))
	if pw := props.Get("db_password"); pw != "" {
		b.WriteString(" -p" + pw)
	}
	b.WriteString(" -P" + props.Get("db_port"))
	if socket := props.Get("db_socket"); socket != "" {
		b.WriteString(" --socket=" + socket)
	}
	return b.String()
}

// mysqlDumpCommand builds the mysqldump line. A dest_db_name property
// pipes the dump straight into another server; dest_file writes it under
// destPath.
func mysqlDumpCommand(props *PropertyStore, attrs Attrs) string {
	parts := []string{mysqlClient(props, "mysqldump")}
	if attrs.Get("nodata") != "" {
		parts = append(parts, "--no-data")
	}
	parts = append(parts, "--databases", props.Get("db_name"))
	if tables := strings.Join(strings.Fields(attrs.Get("tables")), " "); tables != "" {
		parts = append(parts, "--tables", tables)
	}
	if attrs.Get("extendedinsert") == "" {
		parts = append(parts, "--extended-insert")
	}
	if attrs.Get("locktables") == "" {
		parts = append(parts, "--skip-add-locks")
	}
	if attrs.Get("compress") == "" {
		parts = append(parts, "--compress")
	}

	destFile := props.Get("dest_file")
	destDB := props.Get("dest_db_name")
	switch {
	case destDB != "":
		pipe := []string{"| mysql"}
		for _, opt := range []struct{ flag, key string }{
			{"-h ", "dest_db_host"}, {"-u ", "dest_db_username"}, {"-p", "dest_db_password"},
			{"-P", "dest_db_port"}, {"--socket=", "dest_db_socket"},
		} {
			if v := props.Get(opt.key); v != "" {
				pipe = append(pipe, opt.flag+v)
			}
		}
		parts = append(parts, strings.Join(append(pipe, destDB), " "))
	case destFile != "":
		parts = append(parts, "> "+filepath.Join(props.Get("destPath"), destFile))
	case attrs.Get("tabdir") != "":
		parts = append(parts, fmt.Sprintf("--tab=%q", attrs.Get("tabdir")))
	}
	return strings.Join(parts, " ")
}

func taskMySQL(ctx context.Context, rc *RunContext, attrs Attrs) error {
	applyDBAttrs(rc, attrs)
	attrs = rc.ExpandAttrs(attrs)
	switch action := attrs.Get("action"); action {
	case "dump":
		rc.Println("Dumping:" + rc.Props.Get("db_name") + " " + attrs.Get("tables"))
		command := mysqlDumpCommand(rc.Props, attrs)
		rc.Println("\n" + command + "\n")
		return rc.shellPrint(ctx, command)
	case "import":
		return dbImport(ctx, rc, attrs)
	case "load":
		rc.Println("Loading database:" + rc.Props.Get("db_name"))
		command := mysqlClient(rc.Props, "mysql")
		if db := attrs.Get("db_name"); db != "" {
			command += " -D " + db
		}
		return rc.shellPrint(ctx, command+" < "+rc.Props.Get("srcPath"))
	case "query":
		return dbQuery(ctx, rc, attrs.Get("msg"), attrs.Get("query"))
	case "profile":
		return dbProfile(ctx, rc, attrs)
	case "importfiles":
		return dbImportFiles(ctx, rc, attrs)
	default:
		return fmt.Errorf("unknown mysql action %q", action)
	}
}

func dbImport(ctx context.Context, rc *RunContext, attrs Attrs) error {
	files := splitList(attrs.Get("path"))
	rc.Println("Importing:" + rc.Props.Get("db_name") + " " + strings.Join(files, ","))
	for _, file := range files {
		command := mysqlClient(rc.Props, "mysql") + " --database=" + rc.Props.Get("db_name") + " < " + file
		if err := rc.shellPrint(ctx, command); err != nil {
			return err
		}
	}
	return nil
}

func dbQuery(ctx context.Context, rc *RunContext, msg, query string) error {
	rc.Report("Querying: "+msg, 0)
	if strings.TrimSpace(query) == "" {
		rc.Println("Empty query.")
		return nil
	}
	conn, err := rc.dbConnection(ctx)
	if err != nil {
		return err
	}
	rows, _, err := queryRows(ctx, conn, query)
	if err != nil {
		return err
	}
	rc.Report(fmt.Sprintf("Number of records:%d", len(rows)), 1)
	return nil
}

// dbProfile brackets a run with MySQL session profiling. type="begin"
// enables it and remembers the next query id; type="end" writes the
// per-stage durations of every query since.
func dbProfile(ctx context.Context, rc *RunContext, attrs Attrs) error {
	conn, err := rc.dbConnection(ctx)
	if err != nil {
		return err
	}
	switch attrs.Get("type") {
	case "begin":
		rc.Report("Beginning profile...", 0)
		for _, stmt := range []string{"RESET QUERY CACHE", "FLUSH TABLES"} {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				rc.Logger.Debug("profile reset", "stmt", stmt, "error", err)
			}
		}
		if _, err := conn.ExecContext(ctx, "SET PROFILING=1"); err != nil {
			return fmt.Errorf("could not activate MySQL profiling: %w", err)
		}
		profiles, _, err := queryRows(ctx, conn, "SHOW PROFILES")
		if err != nil {
			return err
		}
		rc.Props.Set("profile_begin_id", strconv.Itoa(len(profiles)+1))
		rc.Report("Starting profile at query id:"+rc.Props.Get("profile_begin_id"), 0)
		return nil
	case "end":
		if _, err := conn.ExecContext(ctx, "SET PROFILING=0"); err != nil {
			return err
		}
		profiles, _, err := queryRows(ctx, conn, "SHOW PROFILES")
		if err != nil {
			return err
		}
		begin := rc.Props.Int("profile_begin_id")
		if begin < 1 {
			begin = 1
		}
		var b strings.Builder
		count := 0
		for i := begin - 1; i < len(profiles); i++ {
			query := profiles[i]
			stages, _, err := queryRows(ctx, conn, "SHOW PROFILE FOR QUERY "+query["Query_ID"])
			if err != nil {
				return err
			}
			count++
			fmt.Fprintf(&b, "Query: %s\n", query["Query"])
			total := 0.0
			for _, stage := range stages {
				fmt.Fprintf(&b, "\t%s\t%s\t\n", stage["Status"], stage["Duration"])
				d, _ := strconv.ParseFloat(stage["Duration"], 64)
				total += d
			}
			fmt.Fprintf(&b, "\t\tQuery total: %g\n", total)
			rc.Props.Set("profile_end_id", query["Query_ID"])
		}
		rc.Printf("Profile complete for %d queries.\n", count)
		return os.WriteFile(attrs.Value("output", "profileOut.txt"), []byte(b.String()), 0o644)
	default:
		return fmt.Errorf("profile type must be begin or end")
	}
}

var sqlBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

// dbImportFiles imports every .sql file in srcPath, either through the
// connection (processfiles=1) or by piping it to the mysql client.
func dbImportFiles(ctx context.Context, rc *RunContext, attrs Attrs) error {
	src := rc.Props.Get("srcPath")
	rc.Println("MySQL import from " + src + "...")
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	total := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		total++
		path := filepath.Join(src, entry.Name())
		if attrs.Get("processfiles") == "1" {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(rc.Stderr, "Error opening file:%s\n", path)
				continue
			}
			rc.Println("processing file:" + path)
			query := rc.Expand(sqlBlockComment.ReplaceAllString(string(data), " "))
			if err := dbQuery(ctx, rc, entry.Name(), query); err != nil {
				return err
			}
			continue
		}
		command := mysqlClient(rc.Props, "mysql") + " --database=" + rc.Props.Get("db_name") + " < " + path
		if err := rc.shellPrint(ctx, command); err != nil {
			return err
		}
		if name := entry.Name(); strings.HasPrefix(name, "sp") || strings.HasPrefix(name, "fn") {
			if err := grantExecute(ctx, rc, strings.TrimSuffix(name, ".sql")); err != nil {
				return err
			}
		}
		rc.Report("Import: "+path, 1)
	}
	rc.Printf("Imported %d files.\n", total)
	return nil
}

// Database summary document.
type dbSummary struct {
	XMLName xml.Name  `xml:"database"`
	Name    string    `xml:"name,attr"`
	Server  string    `xml:"server,attr"`
	Date    string    `xml:"date,attr"`
	Count   int       `xml:"tables,attr"`
	Tables  []dbTable `xml:"table"`
}

type dbTable struct {
	Name            string    `xml:"name,attr"`
	Rows            int       `xml:"rows,attr"`
	Checksum        string    `xml:"checksum,attr"`
	Cols            int       `xml:"cols,attr"`
	Indexes         int       `xml:"indexes,attr"`
	HasPrimaryKey   int       `xml:"hasprimarykey,attr"`
	HasPrimaryIndex int       `xml:"hasprimaryindex,attr"`
	Empty           int       `xml:"empty,attr"`
	Fields          []dbField `xml:"field"`
	IndexList       []dbIndex `xml:"index"`
}

type dbField struct {
	Name    string `xml:"name,attr"`
	Type    string `xml:"type,attr"`
	Primary int    `xml:"primary,attr"`
	Null    string `xml:"null,attr"`
	Key     string `xml:"key,attr"`
	Default string `xml:"default,attr"`
	Extra   string `xml:"extra,attr"`
}

type dbIndex struct {
	KeyName   string `xml:"keyname,attr"`
	ColName   string `xml:"colname,attr"`
	Collation string `xml:"collation,attr"`
	Null      string `xml:"null,attr"`
	Comment   string `xml:"comment,attr"`
	Sequence  string `xml:"sequence,attr"`
	NonUnique string `xml:"non_unique,attr"`
}

// incomplete reports whether the table lacks a primary key or index.
func (t dbTable) incomplete() bool {
	return t.HasPrimaryKey == 0 || t.HasPrimaryIndex == 0 || t.Indexes == 0
}

func (s *dbSummary) render() ([]byte, error) {
	out, err := xml.MarshalIndent(s, "", "\t")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func summarizeTable(ctx context.Context, conn *sql.Conn, name string, checksum bool) (dbTable, error) {
	table := dbTable{Name: name}
	fields, _, err := queryRows(ctx, conn, "SHOW FIELDS FROM `"+name+"`")
	if err != nil {
		return table, err
	}
	var quoted []string
	for _, f := range fields {
		field := dbField{Name: f["Field"], Type: f["Type"], Null: f["Null"], Key: f["Key"], Default: f["Default"], Extra: f["Extra"]}
		if f["Key"] == "PRI" {
			field.Primary = 1
			table.HasPrimaryKey = 1
		}
		table.Fields = append(table.Fields, field)
		quoted = append(quoted, "`"+f["Field"]+"`")
	}
	table.Cols = len(fields)

	indexes, _, err := queryRows(ctx, conn, "SHOW INDEXES FROM `"+name+"`")
	if err != nil {
		return table, err
	}
	for _, ix := range indexes {
		if ix["Key_name"] == "PRIMARY" {
			table.HasPrimaryIndex = 1
		}
		table.IndexList = append(table.IndexList, dbIndex{
			KeyName: ix["Key_name"], ColName: ix["Column_name"], Collation: ix["Collation"],
			Null: ix["Null"], Comment: ix["Comment"], Sequence: ix["Seq_in_index"], NonUnique: ix["Non_unique"],
		})
	}
	table.Indexes = len(indexes)

	if checksum && len(quoted) > 0 {
		if _, err := conn.ExecContext(ctx, "SET @checksum := '', @rowCount := 0"); err != nil {
			return table, err
		}
		crc := "SELECT MIN(LEAST(LENGTH(@checksum := MD5(CONCAT(@checksum, MD5(CONCAT_WS('|', " +
			strings.Join(quoted, ",") + "))))), @rowCount := @rowCount + 1)) AS beNull FROM `" + name + "`"
		if _, err := conn.ExecContext(ctx, crc); err != nil {
			return table, err
		}
		result, _, err := queryRows(ctx, conn, "SELECT @checksum crc, @rowCount rows")
		if err != nil {
			return table, err
		}
		if len(result) == 1 {
			table.Checksum = result[0]["crc"]
			table.Rows, _ = strconv.Atoi(result[0]["rows"])
		}
	}
	if table.Rows == 0 {
		table.Empty = 1
	}
	return table, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// grantExecute lets sp_user run an imported stored routine, locally and
// from any host. Nothing is granted without an sp_user.
func grantExecute(ctx context.Context, rc *RunContext, routine string) error {
	user := rc.Props.Get("sp_user")
	if user == "" {
		return nil
	}
	for _, host := range []string{"localhost", "%"} {
		grant := fmt.Sprintf("GRANT EXECUTE ON PROCEDURE %s.%s TO '%s'@'%s';", rc.Props.Get("db_name"), routine, user, host)
		if err := rc.shellPrint(ctx, mysqlClient(rc.Props, "mysql")+` --execute="`+grant+`"`); err != nil {
			return err
		}
	}
	return nil
}

func taskDBSummary(ctx context.Context, rc *RunContext, attrs Attrs) error {
	applyDBAttrs(rc, attrs)
	attrs = rc.ExpandAttrs(attrs)
	conn, err := rc.dbConnection(ctx)
	if err != nil {
		return err
	}
	dbName := rc.Props.Get("db_name")

	tables := splitList(attrs.Get("tablelist"))
	if len(tables) == 0 {
		rows, cols, err := queryRows(ctx, conn, "SHOW TABLES FROM `"+dbName+"`")
		if err != nil {
			return err
		}
		for _, row := range rows {
			tables = append(tables, row[cols[0]])
		}
	}
	exclude := map[string]bool{}
	for _, name := range splitList(attrs.Get("excludelist")) {
		exclude[name] = true
	}
	pause, _ := strconv.ParseFloat(attrs.Get("pausebetween"), 64)

	summary := &dbSummary{
		Name:   dbName,
		Server: rc.Props.Get("db_host"),
		Date:   rc.Now().Format("2006-01-02"),
		Count:  len(tables),
	}
	for _, name := range tables {
		if exclude[name] {
			continue
		}
		if pause > 0 {
			rc.Printf("(pause) ")
			if err := sleepCtx(ctx, time.Duration(pause*float64(time.Second))); err != nil {
				return err
			}
		}
		rc.Report("Summarizing table:"+name, 1)
		table, err := summarizeTable(ctx, conn, name, isTruthy(attrs.Get("checksum")))
		if err != nil {
			return fmt.Errorf("table %s: %w", name, err)
		}
		if isTruthy(attrs.Get("onlymissing")) && !table.incomplete() {
			continue
		}
		summary.Tables = append(summary.Tables, table)
	}

	out, err := summary.render()
	if err != nil {
		return err
	}
	return writeOutput(rc, firstNonEmpty(rc.Options.Outfile, attrs.Get("output")), out)
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(rc *RunContext, path string, data []byte) error {
	if path == "" {
		_, err := rc.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("can't write to %s: %w", path, err)
	}
	return nil
}

// joomlaConfig parses the var/public assignments of a Joomla
// configuration.php.
func joomlaConfig(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	vars := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "var ")
		line = strings.TrimPrefix(line, "public ")
		parts := strings.Split(line, "=")
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[0]), "$"))
		value := strings.NewReplacer(`"`, "", "'", "", ";", "").Replace(parts[1])
		vars[key] = strings.TrimSpace(value)
	}
	return vars, nil
}

var joomlaProps = map[string]string{
	"host":     "db_host",
	"db":       "db_name",
	"user":     "db_username",
	"password": "db_password",
}

func taskJoomla(_ context.Context, rc *RunContext, attrs Attrs) error {
	if action := attrs.Value("action", "getconfig"); action != "getconfig" {
		return fmt.Errorf("unknown joomla action %q", action)
	}
	path := rc.Expand(attrs.Get("src"))
	if path == "" {
		dir, ok := findAbove(".", "configuration.php")
		if !ok {
			rc.Println("The Joomla configuration.php file is not found.")
			return nil
		}
		path = filepath.Join(dir, "configuration.php")
	}
	rc.Println(path)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	vars, err := joomlaConfig(f)
	if err != nil {
		return err
	}
	for key, prop := range joomlaProps {
		if value, ok := vars[key]; ok {
			rc.Props.Set(prop, value)
		}
	}
	if len(vars) > 0 {
		rc.Println("Found and processed Joomla configuration file.")
	}
	return nil
}
