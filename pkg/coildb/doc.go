// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

/*
Package coildb reads and edits the YAML data files of the Modbus simulator.

A data file holds a table (usually "db") mapping numeric addresses to records:

	db:
	  10005:
	    data_description: power led state
	    data_model_type: Coils
	    data_value:
	      type: Independent
	      value: false

Records are addressed by their id and a JSONPointer relative to the record
(by default "/data_value/value"). Lookups are performed on a yaml.Node tree, so
comments and key order survive a rewrite.

A Syncer copies the value of a source record into a destination record, either by
re-encoding the whole document (Reencode) or by splicing the new scalar over the
old one and leaving every other byte alone (Preserve).
*/
package coildb
