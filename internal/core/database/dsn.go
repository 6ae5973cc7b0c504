package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
)

// mysqlDSN accepts a native go-sql-driver DSN or a mysql:// (optionally jdbc:-prefixed)
// URL and returns a native DSN with parseTime on and utf8mb4 as the default charset.
// Non-empty user and pass replace whatever the DSN carries.
func mysqlDSN(input, user, pass string) (string, error) {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if in == "" {
		return "", fmt.Errorf("mysql: empty dsn")
	}

	var (
		cfg *gomysql.Config
		err error
	)
	if strings.HasPrefix(in, "mysql://") {
		cfg, err = fromURL(in)
	} else {
		cfg, err = gomysql.ParseDSN(in)
	}
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	if user != "" {
		cfg.User = user
	}
	if pass != "" {
		cfg.Passwd = pass
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	// a native DSN's charset may live outside Params once parsed
	if cfg.Params["charset"] == "" && !strings.Contains(in, "charset=") && !strings.Contains(in, "characterEncoding=") {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

func fromURL(raw string) (*gomysql.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	cfg := gomysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Params = map[string]string{}

	for k, vs := range u.Query() {
		v := vs[0]
		switch k {
		case "user":
			cfg.User = v
		case "password":
			cfg.Passwd = v
		case "characterEncoding", "charset":
			cfg.Params["charset"] = v
		case "useSSL":
			switch strings.ToLower(v) {
			case "true", "1":
				cfg.TLSConfig = "true"
			case "skip-verify", "preferred":
				cfg.TLSConfig = strings.ToLower(v)
			default:
				cfg.TLSConfig = "false"
			}
		case "serverTimezone":
			if loc, err := time.LoadLocation(v); err == nil {
				cfg.Loc = loc
			}
		case "useUnicode", "zeroDateTimeBehavior", "parseTime":
			// JDBC-only or always set
		default:
			cfg.Params[k] = v
		}
	}
	return cfg, nil
}

func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at <= 0 {
		return dsn
	}
	if colon := strings.Index(dsn[:at], ":"); colon > 0 {
		return dsn[:colon+1] + "****" + dsn[at:]
	}
	return dsn
}
