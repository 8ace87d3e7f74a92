/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command dbpack-cli is a tiny manual smoke-test harness for pkg/driver. It
// opens a single connection against a real MySQL/MariaDB server, runs a
// query, and prints the result set. It is not part of the public API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-dbpack/dbpack/pkg/driver"
	"github.com/go-dbpack/dbpack/pkg/log"
)

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	Version = "0.1.0"

	dsn     string
	query   string
	verbose bool

	rootCommand = &cobra.Command{
		Use:     "dbpack-cli",
		Short:   "dbpack-cli runs a query against a MySQL/MariaDB server using pkg/driver",
		Version: Version,
	}

	queryCommand = &cobra.Command{
		Use:   "query",
		Short: "connect, run a query, print the result set",
		RunE:  runQuery,
	}
)

func init() {
	queryCommand.Flags().StringVar(&dsn, "dsn", "", `data source name, e.g. "root:password@tcp(127.0.0.1:3306)/mysql"`)
	queryCommand.Flags().StringVar(&query, "query", "select 1", "SQL statement to execute")
	queryCommand.Flags().BoolVar(&verbose, "verbose", false, "log packet traffic at debug level")
	_ = queryCommand.MarkFlagRequired("dsn")
	rootCommand.AddCommand(queryCommand)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return errors.Wrap(err, "parsing dsn")
	}
	if verbose {
		cfg.Logger = log.New(log.Config{Level: "debug"})
	}

	dialTimeout := cfg.Timeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	connector := driver.NewConnectorWithConfig(dsn, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	resource, err := connector.NewBackendConnection(ctx)
	if err != nil {
		return errors.Wrap(err, "connecting")
	}
	conn := resource.(*driver.BackendConnection)
	defer conn.Close()

	result, err := conn.Execute(query, true)
	if err != nil {
		return errors.Wrap(err, "executing query")
	}

	if !result.HasResultSet() {
		fmt.Printf("query OK, %d rows affected, last insert id %d\n",
			result.Result.AffectedRows, result.Result.InsertId)
		return nil
	}

	names := make([]string, len(result.Fields))
	for i, field := range result.Fields {
		names[i] = field.Name()
	}
	fmt.Println(names)

	for {
		row, err := result.Rows.Next()
		if err != nil {
			break
		}
		values, err := row.Values()
		if err != nil {
			return errors.Wrap(err, "decoding row")
		}
		fmt.Println(values)
	}
	return nil
}
