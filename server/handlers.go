package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/server/wire"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const resultOK = "ok"

func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ddberr.Serialization(err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return ddberr.Serialization(err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) createTable(w http.ResponseWriter, r *http.Request) string {
	var req wire.CreateTableRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "CreateTable", err)
	}
	out, err := s.db.CreateTable(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "CreateTable", err)
	}
	s.writeJSON(w, wire.TableDescriptionResponse{
		TableDescription: wire.NewTableDescription(out.TableDescription),
	})
	return resultOK
}

func (s *Server) describeTable(w http.ResponseWriter, r *http.Request) string {
	var req wire.DescribeTableRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "DescribeTable", err)
	}
	out, err := s.db.DescribeTable(r.Context(), &dynamodb.DescribeTableInput{TableName: &req.TableName})
	if err != nil {
		return s.writeError(w, "DescribeTable", err)
	}
	s.writeJSON(w, wire.DescribeTableResponse{Table: wire.NewTableDescription(out.Table)})
	return resultOK
}

func (s *Server) deleteTable(w http.ResponseWriter, r *http.Request) string {
	var req wire.DeleteTableRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "DeleteTable", err)
	}
	out, err := s.db.DeleteTable(r.Context(), &dynamodb.DeleteTableInput{TableName: &req.TableName})
	if err != nil {
		return s.writeError(w, "DeleteTable", err)
	}
	s.writeJSON(w, wire.TableDescriptionResponse{
		TableDescription: wire.NewTableDescription(out.TableDescription),
	})
	return resultOK
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) string {
	var req wire.ListTablesRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "ListTables", err)
	}
	out, err := s.db.ListTables(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "ListTables", err)
	}
	names := out.TableNames
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, wire.ListTablesResponse{
		TableNames:             names,
		LastEvaluatedTableName: out.LastEvaluatedTableName,
	})
	return resultOK
}

func (s *Server) putItem(w http.ResponseWriter, r *http.Request) string {
	var req wire.PutItemRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "PutItem", err)
	}
	out, err := s.db.PutItem(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "PutItem", err)
	}
	s.writeJSON(w, wire.AttributesResponse{Attributes: wire.NewItem(out.Attributes)})
	return resultOK
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) string {
	var req wire.GetItemRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "GetItem", err)
	}
	out, err := s.db.GetItem(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "GetItem", err)
	}
	s.writeJSON(w, wire.GetItemResponse{Item: wire.NewItem(out.Item)})
	return resultOK
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) string {
	var req wire.DeleteItemRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "DeleteItem", err)
	}
	out, err := s.db.DeleteItem(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "DeleteItem", err)
	}
	s.writeJSON(w, wire.AttributesResponse{Attributes: wire.NewItem(out.Attributes)})
	return resultOK
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) string {
	var req wire.UpdateItemRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "UpdateItem", err)
	}
	out, err := s.db.UpdateItem(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "UpdateItem", err)
	}
	s.writeJSON(w, wire.AttributesResponse{Attributes: wire.NewItem(out.Attributes)})
	return resultOK
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) string {
	var req wire.QueryRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "Query", err)
	}
	out, err := s.db.Query(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "Query", err)
	}
	items := wire.NewItems(out.Items)
	if items == nil {
		items = []wire.Item{}
	}
	s.writeJSON(w, wire.QueryResponse{
		Items:            items,
		Count:            out.Count,
		ScannedCount:     out.ScannedCount,
		LastEvaluatedKey: wire.NewItem(out.LastEvaluatedKey),
	})
	return resultOK
}

func (s *Server) batchGetItem(w http.ResponseWriter, r *http.Request) string {
	var req wire.BatchGetItemRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "BatchGetItem", err)
	}
	out, err := s.db.BatchGetItem(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "BatchGetItem", err)
	}
	s.writeJSON(w, wire.NewBatchGetItemResponse(out))
	return resultOK
}

func (s *Server) batchWriteItem(w http.ResponseWriter, r *http.Request) string {
	var req wire.BatchWriteItemRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "BatchWriteItem", err)
	}
	out, err := s.db.BatchWriteItem(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "BatchWriteItem", err)
	}
	s.writeJSON(w, wire.NewBatchWriteItemResponse(out))
	return resultOK
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) string {
	var req wire.ScanRequest
	if err := decode(r, &req); err != nil {
		return s.writeError(w, "Scan", err)
	}
	out, err := s.db.Scan(r.Context(), req.Input())
	if err != nil {
		return s.writeError(w, "Scan", err)
	}
	items := wire.NewItems(out.Items)
	if items == nil {
		items = []wire.Item{}
	}
	s.writeJSON(w, wire.QueryResponse{
		Items:            items,
		Count:            out.Count,
		ScannedCount:     out.ScannedCount,
		LastEvaluatedKey: wire.NewItem(out.LastEvaluatedKey),
	})
	return resultOK
}
