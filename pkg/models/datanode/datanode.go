package datanode

import (
	"fmt"
	"strings"
)

// DataNode identifies one physical table instance.
type DataNode struct {
	DataSourceName string
	SchemaName     string
	TableName      string
}

func NewDataNode(dataSource, table string) DataNode {
	return DataNode{
		DataSourceName: dataSource,
		TableName:      table,
	}
}

// ParseDataNode accepts "ds.table" or "ds.schema.table".
func ParseDataNode(str string) (DataNode, error) {
	parts := strings.Split(strings.TrimSpace(str), ".")
	for _, p := range parts {
		if len(p) == 0 || strings.TrimSpace(p) != p {
			return DataNode{}, fmt.Errorf("invalid data node '%v'", str)
		}
	}

	switch len(parts) {
	case 2:
		return DataNode{DataSourceName: parts[0], TableName: parts[1]}, nil
	case 3:
		return DataNode{DataSourceName: parts[0], SchemaName: parts[1], TableName: parts[2]}, nil
	default:
		return DataNode{}, fmt.Errorf("invalid data node '%v', expected <data source>.<table>", str)
	}
}

// ParseDataNodes expands an inline expression and parses every produced node.
func ParseDataNodes(expr string) ([]DataNode, error) {
	names, err := ExpandExpression(expr)
	if err != nil {
		return nil, err
	}
	ret := make([]DataNode, 0, len(names))
	for _, n := range names {
		dn, err := ParseDataNode(n)
		if err != nil {
			return nil, err
		}
		ret = append(ret, dn)
	}
	return ret, nil
}

func (d DataNode) String() string {
	if d.SchemaName == "" {
		return d.DataSourceName + "." + d.TableName
	}
	return d.DataSourceName + "." + d.SchemaName + "." + d.TableName
}

// QualifiedTable returns schema.table, or just the table when no schema is set.
func (d DataNode) QualifiedTable() string {
	if d.SchemaName == "" {
		return d.TableName
	}
	return d.SchemaName + "." + d.TableName
}
