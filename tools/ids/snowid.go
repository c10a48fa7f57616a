package ids

import (
	"strconv"
	"sync"
	"time"
)

// 雪花ID布局：41 位毫秒时间戳、10 位节点、12 位序列号。
const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Node hands out time-ordered session ids that are unique per relay node.
type Node struct {
	mu     sync.Mutex
	now    func() time.Time
	nodeID int64
	seq    int64
	lastMS int64
}

func NewNode(nodeID int64) *Node {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	return &Node{nodeID: nodeID, now: time.Now}
}

var (
	defaultNode *Node
	once        sync.Once
)

func def() *Node {
	once.Do(func() { defaultNode = NewNode(1) })
	return defaultNode
}

// SetNodeID 设置默认生成器的 nodeID（0~1023），可在 main() 初始化时调用
func SetNodeID(nodeID int64) {
	n := def()
	n.mu.Lock()
	defer n.mu.Unlock()
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	n.nodeID = nodeID
}

// Generate 生成一个新的雪花ID
func Generate() int64 { return def().Next() }

func GenerateString() string { return strconv.FormatInt(Generate(), 10) }

func (n *Node) NextString() string { return strconv.FormatInt(n.Next(), 10) }

func (n *Node) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	for {
		ms := n.now().Sub(epoch).Milliseconds()
		if ms < n.lastMS {
			// 时钟回拨，等待
			time.Sleep(time.Duration(n.lastMS-ms) * time.Millisecond)
			continue
		}
		if ms == n.lastMS {
			n.seq = (n.seq + 1) & seqMask
			if n.seq == 0 {
				// 序列溢出，等到下一毫秒
				for ms <= n.lastMS {
					ms = n.now().Sub(epoch).Milliseconds()
				}
			}
		} else {
			n.seq = 0
		}
		n.lastMS = ms

		ts := ms & (1<<41 - 1)
		return ts<<(nodeBits+seqBits) | n.nodeID<<seqBits | n.seq
	}
}

// MaxNodeID is the largest node id SetNodeID accepts.
const MaxNodeID = maxNode
