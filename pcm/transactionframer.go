package pcm

import (
	"errors"

	"github.com/distributed/periph/pfr"
)

const (
	TransactionFramerMaxDatagramsLen = 1470
)

type outgoingFrame struct {
	frame *pfr.Frame
	txns  []*ExecutingTransaction
}

// TransactionFramer packs transactions into frames and matches
// answered frames back to their transactions on Cycle.
type TransactionFramer struct {
	currentIndex uint8

	frameOpen          bool
	currentFrame       *pfr.Frame
	currentFrameLen    uint16
	currentFrameOffset uint16
	currentDgram       *pfr.Datagram
	currentTxns        []*ExecutingTransaction

	frameQueue []outgoingFrame

	inFrameQueue []*pfr.Frame

	framer Framer
}

func NewTransactionFramer(framer Framer) *TransactionFramer {
	return &TransactionFramer{framer: framer}
}

func (tf *TransactionFramer) New(datalen int) (*ExecutingTransaction, error) {
	var err error

	dbgl := datalen + pfr.DatagramOverheadLength
	if dbgl > TransactionFramerMaxDatagramsLen {
		return nil, errors.New("datalen exceeds maximum datagram length")
	}

	if tf.frameOpen {
		if dbgl > int(tf.currentFrameLen-tf.currentFrameOffset) {
			tf.finishFrame()
			err = tf.newFrame()
			if err != nil {
				return nil, err
			}

		}
	} else {
		err = tf.newFrame()
		if err != nil {
			return nil, err
		}
	}

	var dg *pfr.Datagram
	dg, err = tf.currentFrame.NewDatagram(datalen)
	if err != nil {
		return nil, err
	}
	tf.currentDgram = dg

	tf.currentFrameOffset += uint16(dbgl)

	txn := &ExecutingTransaction{
		DatagramOut: dg,
	}
	tf.currentTxns = append(tf.currentTxns, txn)
	return txn, nil
}

func (tf *TransactionFramer) finishFrame() {
	if len(tf.currentFrame.Datagrams) > 0 {
		for i := 0; i < len(tf.currentFrame.Datagrams)-1; i++ {
			tf.currentFrame.Datagrams[i].SetLast(false)
		}
		tf.currentFrame.Datagrams[0].Index = tf.currentIndex
		tf.currentFrame.Datagrams[len(tf.currentFrame.Datagrams)-1].SetLast(true)
		tf.frameQueue = append(tf.frameQueue, outgoingFrame{tf.currentFrame, tf.currentTxns})
	}

	tf.frameOpen = false
	tf.currentFrame = nil
	tf.currentFrameLen = 0
	tf.currentFrameOffset = 0xffff
	tf.currentTxns = nil
	tf.currentIndex++
}

func (tf *TransactionFramer) newFrame() error {
	var (
		frame *pfr.Frame
		err   error
	)

	frame, err = tf.framer.New(TransactionFramerMaxDatagramsLen)
	if err != nil {
		return err
	}

	tf.currentFrame = frame
	tf.currentDgram = nil
	tf.currentTxns = nil
	tf.frameOpen = true
	tf.currentFrameLen = TransactionFramerMaxDatagramsLen
	tf.currentFrameOffset = 0
	return nil
}

func (tf *TransactionFramer) Cycle() error {
	if tf.currentFrame != nil && len(tf.currentFrame.Datagrams) > 0 {
		tf.finishFrame()
	}

	var err error
	tf.inFrameQueue, err = tf.framer.Cycle()
	if err != nil {
		return err
	}

	oi := 0
	for _, infr := range tf.inFrameQueue {
		if oi == len(tf.frameQueue) {
			// no more outgoing frames to scan
			break
		}

		for i := oi; i < len(tf.frameQueue); i++ {
			// is this outgoing frame a match for the incoming frame?
			ofr := tf.frameQueue[i].frame
			if infr.Header.FrameLength() != ofr.Header.FrameLength() {
				continue
			}

			if len(infr.Datagrams) == 0 || len(ofr.Datagrams) == 0 {
				continue
			}

			if len(infr.Datagrams) != len(ofr.Datagrams) {
				continue
			}

			if infr.Datagrams[0].Index != ofr.Datagrams[0].Index {
				continue
			}

			for j, otxn := range tf.frameQueue[i].txns {
				odgram := otxn.DatagramOut
				indgram := infr.Datagrams[j]

				if odgram.Command != indgram.Command {
					continue
				}

				if odgram.DataLength() != indgram.DataLength() {
					continue
				}

				otxn.DatagramIn = indgram
				otxn.Arrived = true
				otxn.Overlayed = true
				otxn.Error = nil
			}

			// update search start index
			oi = i
		}
	}

	tf.frameQueue = nil
	tf.inFrameQueue = nil

	return nil
}

func (tf *TransactionFramer) Close() error {
	return nil
}

type Framer interface {
	New(maxdatalen int) (*pfr.Frame, error)
	Cycle() ([]*pfr.Frame, error)
}
