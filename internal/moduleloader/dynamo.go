package moduleloader

import (
	"context"
	"fmt"

	"corevm/internal/bytecode"
	"corevm/internal/value"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoLoader resolves a module name to a bytecode image stored in a
// DynamoDB table, grounded in the teacher's internal/pkgmanager (name ->
// manifest resolution) and cmd/noxy-plugin-dynamodb (DynamoDB as a
// package registry) — collapsed from a subprocess JSON-RPC plugin into a
// direct library call, since the VM core's Loader interface doesn't need
// an IPC boundary (see DESIGN.md).
type DynamoLoader struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoLoader(client *dynamodb.Client, table string) *DynamoLoader {
	return &DynamoLoader{client: client, table: table}
}

// moduleItem is the DynamoDB item shape for one stored module. Only
// scalar constants (Nil/Bool/Int/Float/String/Symbol) round-trip through
// the registry; heap-shaped constants (lists, maps, nested functions) are
// out of scope for this reference loader, since spec §1 treats wire
// formats for persistence as a Non-goal and this loader exists only to
// exercise the Loader interface against a real datastore.
type moduleItem struct {
	Name            string             `dynamodbav:"module_name"`
	EntryChunk      int                `dynamodbav:"entry_chunk"`
	DeclaredExports []string           `dynamodbav:"declared_exports"`
	Chunks          []storedChunk      `dynamodbav:"chunks"`
}

type storedChunk struct {
	Name         string          `dynamodbav:"name"`
	Instructions []storedInstr   `dynamodbav:"instructions"`
	Constants    []storedScalar  `dynamodbav:"constants"`
}

type storedInstr struct {
	Opcode uint16 `dynamodbav:"op"`
	Arg    uint32 `dynamodbav:"arg"`
}

type storedScalar struct {
	Kind int     `dynamodbav:"kind"`
	I    int64   `dynamodbav:"i"`
	F    float64 `dynamodbav:"f"`
	S    string  `dynamodbav:"s"`
	B    bool    `dynamodbav:"b"`
}

func (l *DynamoLoader) Load(name string) (*ModuleSource, error) {
	ctx := context.Background()
	key, err := attributevalue.MarshalMap(struct {
		ModuleName string `dynamodbav:"module_name"`
	}{ModuleName: name})
	if err != nil {
		return nil, fmt.Errorf("module loader: marshal key: %w", err)
	}

	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.table),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("module loader: get item: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("module %q not found in registry table %s", name, l.table)
	}

	var item moduleItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("module loader: unmarshal item: %w", err)
	}

	chunks := make([]*bytecode.Chunk, len(item.Chunks))
	for i, sc := range item.Chunks {
		instrs := make([]bytecode.Instr, len(sc.Instructions))
		for j, si := range sc.Instructions {
			instrs[j] = bytecode.Instr{Opcode: bytecode.Opcode(si.Opcode), Arg: si.Arg}
		}
		consts := make([]value.Value, len(sc.Constants))
		for j, s := range sc.Constants {
			consts[j] = scalarToValue(s)
		}
		chunks[i] = &bytecode.Chunk{Name: sc.Name, Instructions: instrs, Constants: consts}
	}

	return &ModuleSource{
		Image:           &bytecode.BytecodeImage{Chunks: chunks, MainChunk: item.EntryChunk},
		EntryChunk:      item.EntryChunk,
		DeclaredExports: item.DeclaredExports,
	}, nil
}

func scalarToValue(s storedScalar) value.Value {
	switch value.Kind(s.Kind) {
	case value.KindBool:
		return value.Bool(s.B)
	case value.KindInt:
		return value.Int(s.I)
	case value.KindFloat:
		return value.Float(s.F)
	case value.KindString:
		return value.String(s.S)
	case value.KindSymbol:
		return value.Symbol(s.S)
	default:
		return value.Nil()
	}
}

// EnsureTable creates the registry table if it doesn't already exist.
// Neither the VM nor the CLI calls it.
func EnsureTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("module_name"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("module_name"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}
