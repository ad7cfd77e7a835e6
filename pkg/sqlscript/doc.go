// Package sqlscript splits SQL scripts into statements and classifies them.
//
// It is a lexer, not a parser: it understands quoting, comments, dollar
// quoting and the MySQL client DELIMITER directive well enough to find
// statement boundaries. Everything else is left to the database server.
package sqlscript
