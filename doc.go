/*
Package main implements Todocopy, a declarative runner for site maintenance jobs:
copying, archiving, transferring, database and version-control chores.

A script names targets, each an ordered list of tasks. Running a script resolves
the targets each one depends on, expands {TAG} placeholders in attribute values,
and dispatches every task to its handler with a shared tag and property state.

# Core Features

Targets:
A target may run other targets first (depends, or execbefore) and hand over to
one target afterwards (default, or execafter). The project element follows the
same rules, so a script's default target runs after its top-level tasks. A
target already being executed is not entered again; the chain is reported and
skipped.

Tags:
Built-in tags are DATE, TIME, FIRSTDAY, LASTDAY, COUNTER and the COLOR_* escape
sequences. The tag directive adds more, optionally asking the operator. Unknown
placeholders are left as written and expansion is a single pass.

Properties:
Run-wide settings such as srcPath, destPath, reportLevel and the db_* connection
values. The property directive sets them; src and dest attributes on any task
update srcPath and destPath so later tasks inherit them.

Test Mode:
With -e every task prints its kind and attributes instead of running. The
property and tag directives still run so placeholders resolve as they would.

# CLI Commands

  - run SCRIPT [TARGET]: execute a script, starting at TARGET when given
  - exec COMMAND ARGS...: run one task with positional arguments
  - list SCRIPT: show targets as a table, JSON or YAML
  - validate SCRIPT: report unknown target references and cycles
  - examples: show usage examples for every command

The bare forms are accepted as well:

	todocopy                       # runs tc_autorun.xml or tc_autorun.yaml
	todocopy site.xml deploy       # run site.xml starting at deploy
	todocopy md5 secret            # exec md5 secret
	todocopy ./site ../production  # exec copy ./site ../production

# Scripts

XML scripts use one element per task:

	<project default="build">
	  <property name="reportLevel" value="1"/>
	  <target name="clean">
	    <exec value="rm -rf out"/>
	  </target>
	  <target name="build" depends="clean" default="notify">
	    <copy src="./src" dest="./out"/>
	    <zip archiveFile="site_{DATE}"/>
	  </target>
	  <target name="notify">
	    <log msg="built {DATE} {TIME}"/>
	  </target>
	</project>

YAML (and JSON with comments) scripts carry the same tree:

	default: build
	targets:
	  build:
	    depends: clean
	    tasks:
	      - copy: {src: ./src, dest: ./out}

# Configuration

An optional YAML file named by --config or TODOCOPY_CONFIG seeds properties and
tags and selects the prompt mode and log level:

	properties:
	  db_host: db.internal
	prompt:
	  mode: batch
	  answer: "y"
	log:
	  level: debug

# Dependencies

  - github.com/agilira/orpheus: CLI framework
  - github.com/agilira/go-errors: classified diagnostics
  - gopkg.in/yaml.v3 and github.com/tidwall/jsonc: script and config parsing
  - github.com/klauspost/compress: zip volumes
  - github.com/jlaffaye/ftp: uploads
  - github.com/go-sql-driver/mysql: database tasks
  - github.com/robfig/cron/v3: crontab validation
*/
package main
