package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/citymetrics/ud-data-fetcher/util"
	_ "github.com/lib/pq"
)

const connectionStringEnv = "DATABASE_URL"
const vcapServicesEnv = "VCAP_SERVICES"
const postgresServiceName = "ud-postgres"

//databaseConfigured reports whether an inventory database is reachable
//through the environment. The inventory is optional: when this is false
//nothing is recorded and the inventory endpoints are not served.
func databaseConfigured() bool {
	return os.Getenv(connectionStringEnv) != "" || os.Getenv(vcapServicesEnv) != ""
}

//getDbConnection opens a new database connection.
func getDbConnection(ctx util.LogContext) (*sql.DB, error) {
	connStr := os.Getenv(connectionStringEnv)
	if connStr == "" {
		util.LogInfo(ctx, "No DB connection found in DATABASE_URL, checking VCAP_SERVICES")
		services, err := util.ParseVcapServices([]byte(os.Getenv(vcapServicesEnv)))
		if err != nil {
			return nil, errors.New("Could not get DB connection from DATABASE_URL or VCAP_SERVICES (no valid VCAP_SERVICES found): " + err.Error())
		}
		service := services.ServiceByName(postgresServiceName)
		if service == nil {
			return nil, fmt.Errorf("Could not get DB connection from DATABASE_URL or VCAP_SERVICES ('%s' service not found)", postgresServiceName)
		}
		connStr, err = service.Credentials.String("uri")
		if err != nil {
			return nil, errors.New("Could not get DB connection from DATABASE_URL or VCAP_SERVICES (error getting URI string): " + err.Error())
		}
	}

	// XXX: pq expects SSL to be enabled if not explicitly disabled; we need to explicitly disable it
	dbURI, _ := url.Parse(connStr)
	params := dbURI.Query()
	params.Set("sslmode", "disable")
	dbURI.RawQuery = params.Encode()

	util.LogInfo(ctx, fmt.Sprintf("Creating database connection at: `%s`", dbURI.String()))
	db, err := sql.Open("postgres", dbURI.String())
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, err
}

var getDbConnectionFunc = getDbConnection
